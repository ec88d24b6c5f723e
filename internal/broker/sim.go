package broker

import (
	"sync"
	"time"
)

// Sim is an in-memory Client for tests and dry runs. Every request is
// answered synchronously from the behavior hooks; events land on a buffered
// channel so request calls never block. Hooks left nil fall back to small
// deterministic defaults.
type Sim struct {
	TimeFunc      func() (time.Time, bool)
	TicksFunc     func(reqID int64, c Contract, tickList string) []Event
	DetailsFunc   func(c Contract) []ContractDetailsData
	BarsFunc      func(c Contract, duration, barSize string) []Bar
	PositionsFunc func() []PositionData

	mu         sync.Mutex
	events     chan Event
	subscribed map[int64]Contract
	closed     bool
}

// NewSim returns a started simulator; the handshake event is already queued.
func NewSim() *Sim {
	s := &Sim{
		events:     make(chan Event, 1024),
		subscribed: map[int64]Contract{},
	}
	s.emit(NextValidID{ID: 1})
	return s
}

func (s *Sim) emit(evs ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ev := range evs {
		select {
		case s.events <- ev:
		default:
		}
	}
}

// Emit injects arbitrary events, as a live gateway pushing ticks would.
func (s *Sim) Emit(evs ...Event) { s.emit(evs...) }

func (s *Sim) Events() <-chan Event { return s.events }

func (s *Sim) RequestMarketData(reqID int64, c Contract, tickList string) error {
	s.mu.Lock()
	s.subscribed[reqID] = c
	s.mu.Unlock()
	if s.TicksFunc != nil {
		s.emit(s.TicksFunc(reqID, c, tickList)...)
		return nil
	}
	s.emit(defaultTicks(reqID, c)...)
	return nil
}

func (s *Sim) CancelMarketData(reqID int64) error {
	s.mu.Lock()
	delete(s.subscribed, reqID)
	s.mu.Unlock()
	return nil
}

func (s *Sim) RequestCurrentTime() error {
	if s.TimeFunc != nil {
		if t, ok := s.TimeFunc(); ok {
			s.emit(CurrentTime{Time: t})
		}
		return nil
	}
	s.emit(CurrentTime{Time: time.Now().UTC()})
	return nil
}

func (s *Sim) RequestContractDetails(reqID int64, c Contract) error {
	if s.DetailsFunc != nil {
		for _, d := range s.DetailsFunc(c) {
			d.ReqID = reqID
			s.emit(d)
		}
		s.emit(ContractDetailsEnd{ReqID: reqID})
		return nil
	}
	enriched := c
	if enriched.ConID == 0 {
		enriched.ConID = 1000 + reqID
	}
	s.emit(
		ContractDetailsData{ReqID: reqID, Contract: enriched, TimeZoneID: "US/Eastern"},
		ContractDetailsEnd{ReqID: reqID},
	)
	return nil
}

func (s *Sim) RequestHistoricalData(reqID int64, c Contract, duration, barSize string) error {
	if s.BarsFunc != nil {
		for _, b := range s.BarsFunc(c, duration, barSize) {
			b.ReqID = reqID
			s.emit(b)
		}
		s.emit(HistoricalDataEnd{ReqID: reqID})
		return nil
	}
	s.emit(
		Bar{ReqID: reqID, Time: time.Now().Add(-time.Minute), Close: 100, Volume: 1200},
		HistoricalDataEnd{ReqID: reqID},
	)
	return nil
}

func (s *Sim) RequestPositions() error {
	if s.PositionsFunc != nil {
		for _, p := range s.PositionsFunc() {
			s.emit(p)
		}
	}
	s.emit(PositionEnd{})
	return nil
}

func (s *Sim) CancelPositions() error { return nil }

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Subscribed returns the currently active market-data request ids, for
// assertions in tests.
func (s *Sim) Subscribed() map[int64]Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Contract, len(s.subscribed))
	for id, c := range s.subscribed {
		out[id] = c
	}
	return out
}

func defaultTicks(reqID int64, c Contract) []Event {
	if c.IsOption() {
		return []Event{
			TickPrice{ReqID: reqID, Field: 1, Price: 1.95},
			TickPrice{ReqID: reqID, Field: 2, Price: 2.05},
			TickPrice{ReqID: reqID, Field: 4, Price: 2.00},
			TickOptionComp{ReqID: reqID, Field: 13, Greeks: Greeks{
				IV: 0.22, Delta: -0.18, Gamma: 0.01, Vega: 0.4, Theta: -0.05, UndPrice: 560,
			}},
		}
	}
	return []Event{
		TickPrice{ReqID: reqID, Field: 1, Price: 559.90},
		TickPrice{ReqID: reqID, Field: 2, Price: 560.10},
		TickPrice{ReqID: reqID, Field: 4, Price: 560.00},
		TickPrice{ReqID: reqID, Field: 9, Price: 556.00},
		TickSize{ReqID: reqID, Field: 8, Size: 1_000_000},
	}
}
