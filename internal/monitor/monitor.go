package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"optionwatch/internal/broker"
	"optionwatch/internal/marketdata"
	"optionwatch/internal/outbox"
	"optionwatch/internal/positions"
	"optionwatch/internal/sessions"
)

// Notifier delivers one alert text, best effort.
type Notifier interface {
	Push(text string) error
}

// Config tunes the monitoring loop. Zero values take defaults.
type Config struct {
	CheckInterval    time.Duration // cadence while the market is open
	ClosedMultiplier int           // cadence stretch while closed
	Cooldown         time.Duration // pause after an unexpected cycle failure
	PrevCloseWait    time.Duration // max wait for a prior close to stream in
	Journal          *outbox.Journal
}

func (c Config) withDefaults() Config {
	if c.CheckInterval == 0 {
		c.CheckInterval = time.Minute
	}
	if c.ClosedMultiplier == 0 {
		c.ClosedMultiplier = 5
	}
	if c.Cooldown == 0 {
		c.Cooldown = time.Minute
	}
	if c.PrevCloseWait == 0 {
		c.PrevCloseWait = 10 * time.Second
	}
	return c
}

// Monitor drives the alerting cycle: refresh positions, check the session
// state, evaluate every monitored instrument against the quote cache, and
// deliver deduplicated alerts. The loop never terminates the process; any
// cycle failure is logged and followed by a cool-down.
type Monitor struct {
	cfg      Config
	eval     *Evaluator
	registry *marketdata.Registry
	machine  *sessions.Machine
	source   *positions.Source
	ledger   *Ledger
	notifier Notifier
	log      *logrus.Entry

	subs           []int64
	prevCloses     map[string]float64
	closedNotified bool
}

// New wires a monitor together and hooks per-day state to the session
// machine's trading-day rollover.
func New(cfg Config, rule Rule, registry *marketdata.Registry, machine *sessions.Machine,
	source *positions.Source, notifier Notifier, log *logrus.Entry) *Monitor {
	m := &Monitor{
		cfg:        cfg.withDefaults(),
		eval:       NewEvaluator(rule, log),
		registry:   registry,
		machine:    machine,
		source:     source,
		ledger:     NewLedger(),
		notifier:   notifier,
		log:        log,
		prevCloses: map[string]float64{},
	}
	machine.OnTradingDayChange(func() {
		m.ledger.Reset()
		m.closedNotified = false
		m.prevCloses = map[string]float64{}
		m.log.Info("new trading day, sent-alert ledger and gap references cleared")
		m.capturePrevCloses()
	})
	return m
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor starting, waiting for regular session")
	if !m.waitForOpen(ctx) {
		return ctx.Err()
	}
	m.restoreLedger()
	m.refreshPositions(true)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pause := m.safeCycle()
		if !sleepCtx(ctx, pause) {
			return ctx.Err()
		}
	}
}

// safeCycle runs one cycle, converting panics into a cool-down instead of
// letting them unwind the loop.
func (m *Monitor) safeCycle() (pause time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).Error("monitoring cycle failed, cooling down")
			pause = m.cfg.Cooldown
		}
	}()
	return m.cycle()
}

func (m *Monitor) cycle() time.Duration {
	m.refreshPositions(false)

	st := m.machine.IsMarketOpen()
	if !st.Open {
		if !m.closedNotified {
			entry := m.log
			if !st.NextOpen.IsZero() {
				entry = entry.WithField("next_open", st.NextOpen.Format(time.RFC3339))
			}
			entry.Info("market closed")
			m.closedNotified = true
		}
		return m.cfg.CheckInterval * time.Duration(m.cfg.ClosedMultiplier)
	}
	m.closedNotified = false

	today := m.machine.TradingDate()
	date := today.Format("20060102")

	var alerts []Alert
	for _, sym := range m.source.Underlyings() {
		snap := m.registry.Snapshot(sym)
		alerts = append(alerts, m.eval.Underlying(sym, snap, m.prevCloses[sym], date)...)
	}
	for key, cfg := range m.source.Contracts() {
		snap := m.registry.Snapshot(key)
		a, _ := m.eval.Option(key, cfg, snap, today, date)
		alerts = append(alerts, a...)
	}

	m.deliver(alerts, date)
	return m.cfg.CheckInterval
}

// deliver pushes alerts not yet in the ledger. An alert is recorded as
// sent even when delivery fails, so a persistent outage cannot turn into
// repeat spam once the channel recovers.
func (m *Monitor) deliver(alerts []Alert, date string) {
	sent := 0
	for _, a := range alerts {
		id := a.ID(date)
		if !m.ledger.MarkSent(id, date) {
			m.log.WithField("alert_id", id).Debug("duplicate alert suppressed")
			continue
		}
		pushErr := m.notifier.Push(a.Text)
		if pushErr != nil {
			m.log.WithError(pushErr).WithField("alert_id", id).Error("alert delivery failed")
		}
		m.journal(a, id, date, pushErr)
		sent++
	}
	if sent > 0 {
		m.log.WithField("alerts", sent).Info("alerts delivered")
	}
}

func (m *Monitor) journal(a Alert, id, date string, pushErr error) {
	if m.cfg.Journal == nil {
		return
	}
	rec := outbox.Record{ID: id, Kind: a.Kind, Key: a.Key, Date: date, Text: a.Text}
	if pushErr != nil {
		rec.Error = pushErr.Error()
	}
	if err := m.cfg.Journal.Append(rec); err != nil {
		m.log.WithError(err).Warn("alert journal write failed")
	}
}

// restoreLedger reloads today's journaled ids so a restart mid-session
// does not replay alerts already delivered.
func (m *Monitor) restoreLedger() {
	if m.cfg.Journal == nil {
		return
	}
	date := m.machine.TradingDate().Format("20060102")
	ids, err := m.cfg.Journal.SentIDs(date)
	if err != nil {
		m.log.WithError(err).Warn("alert journal read failed")
		return
	}
	for _, id := range ids {
		m.ledger.MarkSent(id, date)
	}
	if len(ids) > 0 {
		m.log.WithField("alerts", len(ids)).Info("sent-alert ledger restored from journal")
	}
}

// refreshPositions rebuilds the contract set and, when it changed,
// re-subscribes all market data and re-captures prior closes.
func (m *Monitor) refreshPositions(force bool) {
	contracts, changed, err := m.source.Refresh(force)
	if err != nil {
		m.log.WithError(err).Warn("position refresh failed, keeping current set")
		return
	}
	if !changed {
		return
	}

	for _, id := range m.subs {
		m.registry.Unsubscribe(id)
	}
	m.subs = m.subs[:0]

	for _, sym := range m.source.Underlyings() {
		id, err := m.registry.Subscribe(broker.Stock(sym), sym)
		if err != nil {
			m.log.WithError(err).WithField("symbol", sym).Warn("stock subscription failed")
			continue
		}
		m.subs = append(m.subs, id)
	}
	for key, cfg := range contracts {
		id, err := m.registry.Subscribe(cfg.Contract(), key)
		if err != nil {
			m.log.WithError(err).WithField("key", key).Warn("option subscription failed")
			continue
		}
		m.subs = append(m.subs, id)
	}
	m.log.WithField("subscriptions", len(m.subs)).Info("market data re-subscribed")

	m.capturePrevCloses()
}

// capturePrevCloses waits (bounded) for each underlying's prior close to
// appear in the stream; gap alerts need the reference.
func (m *Monitor) capturePrevCloses() {
	for _, sym := range m.source.Underlyings() {
		if m.prevCloses[sym] != 0 {
			continue
		}
		deadline := time.Now().Add(m.cfg.PrevCloseWait)
		for time.Now().Before(deadline) {
			if v, ok := marketdata.PickClose(m.registry.Snapshot(sym)); ok {
				m.prevCloses[sym] = v
				m.log.WithField("symbol", sym).WithField("prev_close", v).Info("prior close captured")
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if m.prevCloses[sym] == 0 {
			m.log.WithField("symbol", sym).Warn("prior close unavailable, gap alerts disabled for symbol")
		}
	}
}

// waitForOpen blocks until the regular session opens or ctx is cancelled.
// Sleeps are bounded so a hung clock never wedges startup.
func (m *Monitor) waitForOpen(ctx context.Context) bool {
	for !m.machine.IsRegularMarketOpen() {
		next := m.machine.NextRegularOpen(m.machine.NowExchange())
		wait := next.Sub(m.machine.NowExchange())
		switch {
		case wait <= time.Minute:
			m.log.Info("market opens shortly, re-checking in 30s")
			wait = 30 * time.Second
		case wait > 5*time.Minute:
			m.log.WithField("next_open", next.Format(time.RFC3339)).Info("market closed, re-checking in 5m")
			wait = 5 * time.Minute
		}
		if !sleepCtx(ctx, wait) {
			return false
		}
	}
	m.log.Info("regular session open, monitoring")
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
