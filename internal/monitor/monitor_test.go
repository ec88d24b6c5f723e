package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionwatch/internal/broker"
	"optionwatch/internal/marketdata"
	"optionwatch/internal/positions"
	"optionwatch/internal/sessions"
)

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) Push(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func TestDeliverDeduplicates(t *testing.T) {
	f := &fakeNotifier{}
	m := &Monitor{ledger: NewLedger(), notifier: f, log: testEntry()}

	alerts := []Alert{{Kind: KindProfit, Key: "k", Text: "take profit"}}
	m.deliver(alerts, "20250724")
	m.deliver(alerts, "20250724")
	assert.Equal(t, 1, f.count())

	// next trading day is a fresh id
	m.deliver(alerts, "20250725")
	assert.Equal(t, 2, f.count())
}

func TestDeliverFailureStillMarksSent(t *testing.T) {
	f := &fakeNotifier{err: errors.New("channel down")}
	m := &Monitor{ledger: NewLedger(), notifier: f, log: testEntry()}

	alerts := []Alert{{Kind: KindDelta, Key: "k", Text: "delta crossed"}}
	m.deliver(alerts, "20250724")
	require.True(t, m.ledger.WasSent(Alert{Kind: KindDelta, Key: "k"}.ID("20250724")))

	// the channel recovering must not replay the alert
	f.err = nil
	m.deliver(alerts, "20250724")
	assert.Equal(t, 0, f.count())
}

func TestMonitorCycleEndToEnd(t *testing.T) {
	sim := broker.NewSim()
	openTime := time.Date(2025, 7, 24, 14, 0, 0, 0, time.UTC) // 10:00 ET, Thursday
	sim.TimeFunc = func() (time.Time, bool) { return openTime, true }
	sim.DetailsFunc = func(c broker.Contract) []broker.ContractDetailsData {
		c.ConID = 99
		return []broker.ContractDetailsData{{
			Contract:     c,
			TradingHours: "20250724:0930-1600",
			TimeZoneID:   "US/Eastern",
		}}
	}
	sim.PositionsFunc = func() []broker.PositionData {
		return []broker.PositionData{{
			Account:  "DU123",
			Contract: broker.Option("SPY", "20251219", 550, broker.RightPut),
			Quantity: -1,
			AvgCost:  450, // 4.50/share; sim quotes the option at 2.00
		}}
	}

	disp := broker.NewDispatcher(sim, testEntry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	disp.Start(ctx)
	require.NoError(t, disp.AwaitReady(2*time.Second))

	registry := marketdata.NewRegistry(disp, testEntry())
	oracle := sessions.NewOracle(disp, testEntry())
	machine := sessions.NewMachine(sessions.Config{}, oracle, disp, testEntry())
	source := positions.NewSource(disp, time.Minute, testEntry())
	notifier := &fakeNotifier{}

	m := New(Config{PrevCloseWait: 2 * time.Second}, DefaultRule(),
		registry, machine, source, notifier, testEntry())

	m.refreshPositions(true)
	require.NotEmpty(t, m.subs)

	// wait for the option stream to land before evaluating
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := registry.Snapshot("SPY_PUT_550_20251219")
		if _, ok := snap["delta"]; ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	pause := m.cycle()
	assert.Equal(t, m.cfg.CheckInterval, pause)

	// 55% of the premium captured triggers exactly one profit alert
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.texts[0], "💰")

	// a second cycle re-detects the condition but the ledger holds it
	m.cycle()
	assert.Equal(t, 1, notifier.count())
}

func TestTradingDayRolloverResetsGapReference(t *testing.T) {
	day := 24 // Thursday 2025-07-24
	sim := broker.NewSim()
	sim.TimeFunc = func() (time.Time, bool) {
		return time.Date(2025, 7, day, 14, 0, 0, 0, time.UTC), true // 10:00 ET
	}
	sim.DetailsFunc = func(c broker.Contract) []broker.ContractDetailsData {
		c.ConID = 99
		return []broker.ContractDetailsData{{
			Contract:     c,
			TradingHours: fmt.Sprintf("202507%02d:0930-1600", day),
			TimeZoneID:   "US/Eastern",
		}}
	}
	sim.PositionsFunc = func() []broker.PositionData {
		return []broker.PositionData{{
			Account:  "DU123",
			Contract: broker.Option("SPY", "20251219", 550, broker.RightPut),
			Quantity: -1,
			AvgCost:  450,
		}}
	}

	disp := broker.NewDispatcher(sim, testEntry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	disp.Start(ctx)
	require.NoError(t, disp.AwaitReady(2*time.Second))

	registry := marketdata.NewRegistry(disp, testEntry())
	oracle := sessions.NewOracle(disp, testEntry())
	machine := sessions.NewMachine(sessions.Config{CheckInterval: time.Nanosecond}, oracle, disp, testEntry())
	source := positions.NewSource(disp, time.Minute, testEntry())
	notifier := &fakeNotifier{}

	m := New(Config{PrevCloseWait: 2 * time.Second}, DefaultRule(),
		registry, machine, source, notifier, testEntry())

	m.refreshPositions(true)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Snapshot("SPY_PUT_550_20251219")["delta"]; ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.cycle()
	require.Equal(t, 1, notifier.count())
	require.Equal(t, 556.0, m.prevCloses["SPY"])

	// poison the reference; the rollover must rebuild it, not carry it over
	m.prevCloses["SPY"] = 999

	day = 25
	m.cycle()
	assert.Equal(t, 556.0, m.prevCloses["SPY"])
	// the ledger reset re-arms the same condition for the new date
	assert.Equal(t, 2, notifier.count())
}
