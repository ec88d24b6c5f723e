package outbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "alerts.jsonl")
	j, err := New(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(Record{ID: "profit_k_20250724", Kind: "profit", Key: "k", Date: "20250724"}))
	require.NoError(t, j.Append(Record{ID: "dte_k_20250724", Kind: "dte", Key: "k", Date: "20250724", Error: "channel down"}))
	require.NoError(t, j.Append(Record{ID: "profit_k_20250725", Kind: "profit", Key: "k", Date: "20250725"}))

	ids, err := j.SentIDs("20250724")
	require.NoError(t, err)
	assert.Equal(t, []string{"profit_k_20250724", "dte_k_20250724"}, ids)

	ids, err = j.SentIDs("20250726")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestJournalMissingFileIsEmpty(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "alerts.jsonl"))
	require.NoError(t, err)

	ids, err := j.SentIDs("20250724")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestJournalSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	j, err := New(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(Record{ID: "a", Date: "20250724"}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, j.Append(Record{ID: "b", Date: "20250724"}))

	ids, err := j.SentIDs("20250724")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
