package sessions

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"optionwatch/internal/broker"
)

// Gateway is the slice of the broker dispatcher the session machine needs:
// trading-hours lookups and the recent-bar fallback.
type Gateway interface {
	ContractDetails(c broker.Contract, timeout time.Duration) ([]broker.ContractDetailsData, error)
	HistoricalBars(c broker.Contract, duration, barSize string, timeout time.Duration) ([]broker.Bar, error)
}

// Status is the process-wide market-session state. NextOpen is zero when
// unknown.
type Status struct {
	Open      bool
	NextOpen  time.Time
	LastCheck time.Time
}

// Config tunes the session machine. Zero values take the defaults below.
type Config struct {
	ReferenceSymbol string        // instrument whose trading hours stand in for the exchange
	CheckInterval   time.Duration // min interval between remote-touching evaluations
	StickyGrace     time.Duration // keep reporting open across unresolvable time up to this
	SoftCacheAge    time.Duration // oracle soft cache for evaluations
	HoursTimeout    time.Duration
	BarsTimeout     time.Duration
	CloseDebounce   time.Duration // recheck window after nominal close
}

func (c Config) withDefaults() Config {
	if c.ReferenceSymbol == "" {
		c.ReferenceSymbol = "SPY"
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = time.Minute
	}
	if c.StickyGrace == 0 {
		c.StickyGrace = 15 * time.Minute
	}
	if c.SoftCacheAge == 0 {
		c.SoftCacheAge = 90 * time.Second
	}
	if c.HoursTimeout == 0 {
		c.HoursTimeout = 10 * time.Second
	}
	if c.BarsTimeout == 0 {
		c.BarsTimeout = 10 * time.Second
	}
	if c.CloseDebounce == 0 {
		c.CloseDebounce = 5 * time.Minute
	}
	return c
}

var marketOpenClock = 9*60 + 30 // minutes from midnight, exchange local
var marketCloseClock = 16 * 60

// Machine decides whether the market is open, combining the time oracle,
// the reference instrument's trading hours, and a recent-trade-volume
// fallback, with hysteresis so transient failures and closing-time jitter
// do not flap the answer. It is the only mutator of Status.
type Machine struct {
	cfg    Config
	oracle *Oracle
	gw     Gateway
	cal    *tradingCalendar
	loc    *time.Location
	log    *logrus.Entry
	now    func() time.Time

	mu          sync.Mutex
	status      Status
	tradingDate string // YYYYMMDD in exchange-local time
	onNewDay    []func()
}

// NewMachine builds a session machine around the oracle and gateway.
func NewMachine(cfg Config, oracle *Oracle, gw Gateway, log *logrus.Entry) *Machine {
	cal := newTradingCalendar()
	return &Machine{
		cfg:    cfg.withDefaults(),
		oracle: oracle,
		gw:     gw,
		cal:    cal,
		loc:    cal.loc,
		log:    log,
		now:    time.Now,
	}
}

// OnTradingDayChange registers a callback fired when the trading date
// advances while the market is open (per-day state like the sent-alert
// ledger resets there).
func (m *Machine) OnTradingDayChange(fn func()) {
	m.mu.Lock()
	m.onNewDay = append(m.onNewDay, fn)
	m.mu.Unlock()
}

// Status returns the last computed state without touching the remote.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsMarketOpen returns the current session state, re-evaluating remotely
// at most once per CheckInterval.
func (m *Machine) IsMarketOpen() Status {
	m.mu.Lock()
	if !m.status.LastCheck.IsZero() && m.now().Sub(m.status.LastCheck) < m.cfg.CheckInterval {
		st := m.status
		m.mu.Unlock()
		return st
	}
	m.status.LastCheck = m.now()
	wasOpen := m.status.Open
	st := m.status
	m.mu.Unlock()

	st = m.evaluate(st, wasOpen)

	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
	return st
}

func (m *Machine) evaluate(st Status, wasOpen bool) Status {
	t, ok := m.oracle.ServerTime(OracleOptions{
		Extrapolate:  true,
		SoftCacheAge: m.cfg.SoftCacheAge,
	})
	if !ok {
		if wasOpen {
			if age, known := m.oracle.Age(); known && age < m.cfg.StickyGrace {
				m.log.Warn("server time unavailable, holding open within sticky grace")
				return st
			}
		}
		m.log.Warn("server time unavailable past sticky grace, treating market as closed")
		st.Open = false
		if last, known := m.oracle.LastKnown(); known {
			st.NextOpen = m.NextRegularOpen(last.In(m.loc))
		}
		return st
	}

	et := t.In(m.loc)

	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		st.Open = false
		st.NextOpen = m.NextRegularOpen(et)
		m.rollTradingDate(st, et)
		return st
	}

	hours := m.tradingHours()
	if hours == "" {
		m.log.Warn("trading hours unavailable, falling back to recent-trade check")
		st.Open = m.recentVolume()
		if !st.Open {
			st.NextOpen = m.NextRegularOpen(et)
		}
		m.rollTradingDate(st, et)
		return st
	}

	open := withinTradingHours(hours, et, m.loc)

	// Feed jitter right at the close can report closed a few minutes
	// early; confirm with actual trades before committing.
	if wasOpen && !open && m.withinCloseDebounce(et) {
		if m.recentVolume() {
			open = true
		}
	}

	st.Open = open
	if !open {
		st.NextOpen = m.NextRegularOpen(et)
	} else {
		st.NextOpen = time.Time{}
	}
	m.rollTradingDate(st, et)
	return st
}

// withinCloseDebounce covers one minute before the close through the
// debounce window after it, both edges inclusive.
func (m *Machine) withinCloseDebounce(et time.Time) bool {
	closeOfDay := time.Date(et.Year(), et.Month(), et.Day(), marketCloseClock/60, marketCloseClock%60, 0, 0, m.loc)
	return !et.Before(closeOfDay.Add(-time.Minute)) && !et.After(closeOfDay.Add(m.cfg.CloseDebounce))
}

// rollTradingDate fires the new-day callbacks when the date advances while
// the market is open.
func (m *Machine) rollTradingDate(st Status, et time.Time) {
	if !st.Open {
		return
	}
	date := et.Format("20060102")
	m.mu.Lock()
	changed := m.tradingDate != "" && m.tradingDate != date
	m.tradingDate = date
	callbacks := m.onNewDay
	m.mu.Unlock()
	if changed {
		m.log.WithField("trading_date", date).Info("trading date advanced")
		for _, fn := range callbacks {
			fn()
		}
	}
}

// NowExchange returns current exchange-local time, through the oracle
// when resolvable and the local clock otherwise.
func (m *Machine) NowExchange() time.Time {
	t, ok := m.oracle.ServerTime(OracleOptions{Extrapolate: true, SoftCacheAge: m.cfg.SoftCacheAge})
	if !ok {
		t = m.now()
	}
	return t.In(m.loc)
}

// TradingDate returns the current exchange-local trading date.
func (m *Machine) TradingDate() time.Time {
	et := m.NowExchange()
	return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, m.loc)
}

// IsRegularMarketOpen checks only the fixed 09:30-16:00 regular session on
// business days; no trading-hours lookup. Used by tight polling loops
// waiting for the open. An unresolvable clock returns the last full
// evaluation's answer.
func (m *Machine) IsRegularMarketOpen() bool {
	t, ok := m.oracle.ServerTime(OracleOptions{Extrapolate: true, SoftCacheAge: m.cfg.SoftCacheAge})
	if !ok {
		return m.Status().Open
	}
	et := t.In(m.loc)
	if !m.cal.isBusinessDay(et) {
		return false
	}
	mins := et.Hour()*60 + et.Minute()
	return mins >= marketOpenClock && mins < marketCloseClock
}

// NextRegularOpen returns the next regular-session open at or after et:
// today 09:30 when et is a business day before the open, otherwise 09:30
// of the next business day.
func (m *Machine) NextRegularOpen(et time.Time) time.Time {
	et = et.In(m.loc)
	todayOpen := time.Date(et.Year(), et.Month(), et.Day(), marketOpenClock/60, marketOpenClock%60, 0, 0, m.loc)
	if m.cal.isBusinessDay(et) && et.Before(todayOpen) {
		return todayOpen
	}
	next := et.AddDate(0, 0, 1)
	for !m.cal.isBusinessDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), marketOpenClock/60, marketOpenClock%60, 0, 0, m.loc)
}

func (m *Machine) tradingHours() string {
	details, err := m.gw.ContractDetails(broker.Stock(m.cfg.ReferenceSymbol), m.cfg.HoursTimeout)
	if err != nil || len(details) == 0 {
		return ""
	}
	return details[0].TradingHours
}

// recentVolume reports whether the reference instrument printed any trade
// volume in the last five minutes.
func (m *Machine) recentVolume() bool {
	bars, err := m.gw.HistoricalBars(broker.Stock(m.cfg.ReferenceSymbol), "300 S", "1 min", m.cfg.BarsTimeout)
	if err != nil || len(bars) == 0 {
		return false
	}
	return bars[len(bars)-1].Volume > 0
}
