package positions

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"optionwatch/internal/broker"
)

// Opening sides. A negative position quantity means premium was collected.
const (
	ActionSell = "SELL"
	ActionBuy  = "BUY"
)

const defaultMultiplier = 100

// ContractConfig is one monitored option position: the contract identity
// plus the reference premium the alert engine measures profit against.
type ContractConfig struct {
	Symbol       string
	Expiry       string // YYYYMMDD
	Strike       float64
	Right        string // PUT / CALL
	Exchange     string
	Currency     string
	Action       string  // opening side
	Premium      float64 // per-share cost basis
	Quantity     float64
	ConID        int64
	TradingClass string
	Multiplier   float64
}

// Key is the stable per-position identifier used for subscriptions,
// snapshots, and alert ids.
func (c ContractConfig) Key() string {
	return fmt.Sprintf("%s_%s_%g_%s", c.Symbol, c.Right, c.Strike, c.Expiry)
}

// Contract converts the config to a gateway contract.
func (c ContractConfig) Contract() broker.Contract {
	con := broker.Option(c.Symbol, c.Expiry, c.Strike, c.Right)
	if c.Exchange != "" {
		con.Exchange = c.Exchange
	}
	if c.Currency != "" {
		con.Currency = c.Currency
	}
	con.ConID = c.ConID
	con.TradingClass = c.TradingClass
	con.Multiplier = c.Multiplier
	return con
}

// IsShort reports whether the position collected premium at open.
func (c ContractConfig) IsShort() bool { return c.Action == ActionSell }

// DTE returns whole days until expiry relative to today's date.
func (c ContractConfig) DTE(today time.Time) (int, error) {
	exp, err := time.ParseInLocation("20060102", c.Expiry, today.Location())
	if err != nil {
		return 0, fmt.Errorf("positions: bad expiry %q: %w", c.Expiry, err)
	}
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return int(exp.Sub(midnight).Hours() / 24), nil
}

// Gateway is the slice of the dispatcher this package needs.
type Gateway interface {
	Positions(timeout time.Duration) ([]broker.PositionData, error)
	ContractDetails(c broker.Contract, timeout time.Duration) ([]broker.ContractDetailsData, error)
}

// Source converts live brokerage holdings into the monitoring contract
// set. Each refresh replaces the set wholesale; there is no incremental
// diffing, callers re-subscribe everything on change.
type Source struct {
	gw           Gateway
	log          *logrus.Entry
	refreshEvery time.Duration
	fetchTimeout time.Duration

	mu          sync.Mutex
	byKey       map[string]ContractConfig
	lastRefresh time.Time
}

// NewSource builds a position source refreshing at most every refreshEvery.
func NewSource(gw Gateway, refreshEvery time.Duration, log *logrus.Entry) *Source {
	if refreshEvery == 0 {
		refreshEvery = 10 * time.Minute
	}
	return &Source{
		gw:           gw,
		log:          log,
		refreshEvery: refreshEvery,
		fetchTimeout: 10 * time.Second,
		byKey:        map[string]ContractConfig{},
	}
}

// Contracts returns a copy of the current monitored set.
func (s *Source) Contracts() map[string]ContractConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ContractConfig, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

// Underlyings returns the sorted unique underlying symbols of the set.
func (s *Source) Underlyings() []string {
	s.mu.Lock()
	seen := map[string]bool{}
	for _, c := range s.byKey {
		seen[c.Symbol] = true
	}
	s.mu.Unlock()
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Refresh rebuilds the contract set from current holdings. Skipped (with
// changed=false) when the set is younger than the refresh interval and
// force is unset. An empty position fetch keeps the existing set rather
// than tearing down monitoring on a transient failure.
func (s *Source) Refresh(force bool) (contracts map[string]ContractConfig, changed bool, err error) {
	s.mu.Lock()
	fresh := !s.lastRefresh.IsZero() && time.Since(s.lastRefresh) < s.refreshEvery
	s.mu.Unlock()
	if fresh && !force {
		return s.Contracts(), false, nil
	}

	records, err := s.gw.Positions(s.fetchTimeout)
	if err != nil {
		return s.Contracts(), false, fmt.Errorf("positions: fetch: %w", err)
	}

	next := map[string]ContractConfig{}
	for _, rec := range records {
		if rec.Contract.SecType != broker.SecTypeOption || rec.Quantity == 0 {
			continue
		}
		cfg := fromPosition(rec)
		next[cfg.Key()] = cfg
	}

	if len(next) == 0 {
		s.log.Warn("no open option positions, keeping previous contract set")
		return s.Contracts(), false, nil
	}

	s.enrich(next)

	s.mu.Lock()
	s.byKey = next
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	s.log.WithField("contracts", len(next)).Info("contract set refreshed from positions")
	return s.Contracts(), true, nil
}

func fromPosition(rec broker.PositionData) ContractConfig {
	action := ActionBuy
	if rec.Quantity < 0 {
		action = ActionSell
	}
	mult := rec.Contract.Multiplier
	if mult <= 0 {
		mult = defaultMultiplier
	}
	return ContractConfig{
		Symbol:       rec.Contract.Symbol,
		Expiry:       rec.Contract.Expiry,
		Strike:       rec.Contract.Strike,
		Right:        normalizeRight(rec.Contract.Right),
		Exchange:     rec.Contract.Exchange,
		Currency:     rec.Contract.Currency,
		Action:       action,
		Premium:      rec.AvgCost / mult,
		Quantity:     rec.Quantity,
		ConID:        rec.Contract.ConID,
		TradingClass: rec.Contract.TradingClass,
		Multiplier:   rec.Contract.Multiplier,
	}
}

func normalizeRight(right string) string {
	switch strings.ToUpper(right) {
	case "P", "PUT":
		return broker.RightPut
	case "C", "CALL":
		return broker.RightCall
	}
	return strings.ToUpper(right)
}

// enrich backfills the venue contract id, trading class, and multiplier
// for entries missing them; subscriptions against fully identified
// contracts succeed far more often.
func (s *Source) enrich(set map[string]ContractConfig) {
	for key, cfg := range set {
		if cfg.ConID != 0 {
			continue
		}
		details, err := s.gw.ContractDetails(cfg.Contract(), 5*time.Second)
		if err != nil || len(details) == 0 {
			s.log.WithField("key", key).Debug("contract lookup failed, leaving unenriched")
			continue
		}
		d := details[0].Contract
		cfg.ConID = d.ConID
		if d.TradingClass != "" {
			cfg.TradingClass = d.TradingClass
		}
		if d.Multiplier > 0 {
			cfg.Multiplier = d.Multiplier
		}
		set[key] = cfg
	}
}

// Summary renders current holdings for logs and status pushes.
func (s *Source) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byKey) == 0 {
		return "no open option positions"
	}
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		c := s.byKey[k]
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %g %s: %+g @ %.2f", c.Symbol, c.Right, c.Strike, c.Expiry, c.Quantity, c.Premium)
	}
	return b.String()
}
