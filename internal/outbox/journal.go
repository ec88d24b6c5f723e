package outbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one delivered (or attempted) alert, journaled append-only.
type Record struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key"`
	Date      string    `json:"date"` // trading date, YYYYMMDD
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal persists alert deliveries as JSON lines. Besides the audit
// trail, it lets a restarted process reload the current trading day's
// sent ids so alerts are not replayed.
type Journal struct {
	mu   sync.Mutex
	path string
}

// New creates the journal file's directory if needed.
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("outbox: mkdir: %w", err)
	}
	return &Journal{path: path}, nil
}

// Append writes one record. Timestamp is stamped here when unset.
func (j *Journal) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("outbox: marshal: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("outbox: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("outbox: write: %w", err)
	}
	return nil
}

// SentIDs returns the ids journaled for one trading date. A missing file
// is an empty journal, not an error; unparsable lines are skipped.
func (j *Journal) SentIDs(date string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("outbox: open: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Date == date {
			ids = append(ids, rec.ID)
		}
	}
	if err := sc.Err(); err != nil {
		return ids, fmt.Errorf("outbox: scan: %w", err)
	}
	return ids, nil
}
