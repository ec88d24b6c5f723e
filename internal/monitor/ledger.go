package monitor

import "sync"

// Ledger records which alert ids were delivered on the current trading
// day. Ids embed the trading date, and the whole ledger is cleared when
// the date advances, so a condition is delivered at most once per day no
// matter how many cycles re-detect it.
type Ledger struct {
	mu   sync.Mutex
	sent map[string]string // alert id -> trading date delivered
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{sent: map[string]string{}}
}

// MarkSent records id as delivered for date. Returns false when the id
// was already recorded (duplicate, do not deliver again).
func (l *Ledger) MarkSent(id, date string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.sent[id]; dup {
		return false
	}
	l.sent[id] = date
	return true
}

// WasSent reports whether id has been delivered already.
func (l *Ledger) WasSent(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[id]
	return ok
}

// Reset clears the ledger; called on trading-day rollover.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.sent = map[string]string{}
	l.mu.Unlock()
}

// Len returns the number of recorded alerts.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}
