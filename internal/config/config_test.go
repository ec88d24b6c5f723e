package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "tok")
	c, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", c.Connection.Host)
	assert.Equal(t, 7497, c.Connection.Port)
	assert.Equal(t, 0.30, c.Strategy.DeltaUpper)
	assert.Equal(t, 0.10, c.Strategy.DeltaLower)
	assert.Equal(t, 0.50, c.Strategy.ProfitTarget)
	assert.True(t, c.Strategy.ProfitShortOnlyValue())
	assert.Equal(t, 21, c.Strategy.MinDTE)
	assert.Equal(t, 0.03, c.Strategy.GapThreshold)
	assert.Equal(t, 60, c.Intervals.CheckSeconds)
	assert.Equal(t, "SPY", c.Session.ReferenceSymbol)
	assert.Equal(t, 1000, c.Notify.MaxTextLen)
	assert.Equal(t, "tok", c.Notify.Token)
}

func TestLoadOverrides(t *testing.T) {
	body := `
strategy:
  delta_upper: 0.25
  profit_short_only: false
intervals:
  check_seconds: 30
session:
  reference_symbol: QQQ
journal:
  path: /tmp/alerts.jsonl
notify:
  token: ignored-from-file
`
	c, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 0.25, c.Strategy.DeltaUpper)
	assert.False(t, c.Strategy.ProfitShortOnlyValue())
	assert.Equal(t, 30, c.Intervals.CheckSeconds)
	assert.Equal(t, "QQQ", c.Session.ReferenceSymbol)
	assert.Equal(t, "/tmp/alerts.jsonl", c.Journal.Path)
	// the token never comes from the file
	assert.NotEqual(t, "ignored-from-file", c.Notify.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
