package broker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TickSink receives normalized-routing tick events for all market-data
// request ids, streaming and one-shot alike.
type TickSink interface {
	HandleTickPrice(reqID int64, field int, price float64)
	HandleTickSize(reqID int64, field int, size float64)
	HandleTickGeneric(reqID int64, field int, value float64)
	HandleTickOption(reqID int64, field int, g Greeks)
}

type batch[T any] struct {
	mu    sync.Mutex
	items []T
	done  chan struct{}
}

func newBatch[T any]() *batch[T] {
	return &batch[T]{done: make(chan struct{})}
}

func (b *batch[T]) add(item T) {
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()
}

func (b *batch[T]) finish() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *batch[T]) wait(timeout time.Duration) ([]T, error) {
	select {
	case <-b.done:
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items, nil
}

// Dispatcher consumes the client's event stream and routes each event to
// the component waiting for it: ticks to the TickSink, request/response
// exchanges (time, contract details, bars, positions) to single pending
// waiters. Issuing a new request of a given kind clears the previous
// pending waiter, so a late answer to an abandoned request is dropped.
//
// Outbound market-data requests are paced with a token bucket; the gateway
// throttles clients that burst requests.
type Dispatcher struct {
	client  Client
	log     *logrus.Entry
	limiter *rate.Limiter
	ready   chan struct{}
	once    sync.Once

	mu        sync.Mutex
	nextID    int64
	sink      TickSink
	timeWait  chan time.Time
	details   *batch[ContractDetailsData]
	bars      *batch[Bar]
	positions *batch[PositionData]
}

// NewDispatcher wraps a client. SetSink must be called before market-data
// subscriptions are issued.
func NewDispatcher(client Client, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		client:  client,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(40), 40),
		ready:   make(chan struct{}),
		nextID:  1,
	}
}

// SetSink registers the consumer of tick events.
func (d *Dispatcher) SetSink(s TickSink) {
	d.mu.Lock()
	d.sink = s
	d.mu.Unlock()
}

// Start launches the event pump. It returns when ctx is cancelled or the
// client's event channel closes.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.pump(ctx)
}

// AwaitReady blocks until the handshake completes or the timeout elapses.
func (d *Dispatcher) AwaitReady(timeout time.Duration) error {
	select {
	case <-d.ready:
		return nil
	case <-time.After(timeout):
		return ErrNotReady
	}
}

func (d *Dispatcher) pump(ctx context.Context) {
	events := d.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.route(ev)
		}
	}
}

func (d *Dispatcher) route(ev Event) {
	switch e := ev.(type) {
	case NextValidID:
		d.mu.Lock()
		if e.ID > d.nextID {
			d.nextID = e.ID
		}
		d.mu.Unlock()
		d.once.Do(func() { close(d.ready) })
	case TickPrice:
		if s := d.tickSink(); s != nil {
			s.HandleTickPrice(e.ReqID, e.Field, e.Price)
		}
	case TickSize:
		if s := d.tickSink(); s != nil {
			s.HandleTickSize(e.ReqID, e.Field, e.Size)
		}
	case TickGeneric:
		if s := d.tickSink(); s != nil {
			s.HandleTickGeneric(e.ReqID, e.Field, e.Value)
		}
	case TickOptionComp:
		if s := d.tickSink(); s != nil {
			s.HandleTickOption(e.ReqID, e.Field, e.Greeks)
		}
	case CurrentTime:
		d.mu.Lock()
		ch := d.timeWait
		d.timeWait = nil
		d.mu.Unlock()
		if ch != nil {
			ch <- e.Time
		}
	case ContractDetailsData:
		d.mu.Lock()
		b := d.details
		d.mu.Unlock()
		if b != nil {
			b.add(e)
		}
	case ContractDetailsEnd:
		d.mu.Lock()
		b := d.details
		d.mu.Unlock()
		if b != nil {
			b.finish()
		}
	case Bar:
		d.mu.Lock()
		b := d.bars
		d.mu.Unlock()
		if b != nil {
			b.add(e)
		}
	case HistoricalDataEnd:
		d.mu.Lock()
		b := d.bars
		d.mu.Unlock()
		if b != nil {
			b.finish()
		}
	case PositionData:
		d.mu.Lock()
		b := d.positions
		d.mu.Unlock()
		if b != nil {
			b.add(e)
		}
	case PositionEnd:
		d.mu.Lock()
		b := d.positions
		d.mu.Unlock()
		if b != nil {
			b.finish()
		}
	case ErrorEvent:
		if IsAdvisory(e.Code) {
			d.log.WithFields(logrus.Fields{"code": e.Code, "req_id": e.ReqID}).Debug(e.Message)
		} else {
			d.log.WithFields(logrus.Fields{"code": e.Code, "req_id": e.ReqID}).Warn(e.Message)
		}
	}
}

func (d *Dispatcher) tickSink() TickSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

func (d *Dispatcher) allocID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	return id
}

// NextRequestID allocates a fresh request id. Callers that route ticks by
// id should register the id before issuing the request.
func (d *Dispatcher) NextRequestID() int64 { return d.allocID() }

// RequestMarketData issues a market-data request under a previously
// allocated id. It does not wait for data.
func (d *Dispatcher) RequestMarketData(reqID int64, c Contract, tickList string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.limiter.Wait(ctx); err != nil {
		d.log.WithError(err).WithField("req_id", reqID).Debug("request pacing wait cut short")
	}
	return d.client.RequestMarketData(reqID, c, tickList)
}

// CancelMarketData cancels a streaming or one-shot request.
func (d *Dispatcher) CancelMarketData(reqID int64) {
	if err := d.client.CancelMarketData(reqID); err != nil {
		d.log.WithError(err).WithField("req_id", reqID).Debug("cancel market data")
	}
}

// ServerTime issues one current-time request and waits for the answer.
// Any previously pending current-time waiter is abandoned first.
func (d *Dispatcher) ServerTime(timeout time.Duration) (time.Time, error) {
	ch := make(chan time.Time, 1)
	d.mu.Lock()
	d.timeWait = ch
	d.mu.Unlock()
	if err := d.client.RequestCurrentTime(); err != nil {
		return time.Time{}, err
	}
	select {
	case t := <-ch:
		return t, nil
	case <-time.After(timeout):
		return time.Time{}, ErrTimeout
	}
}

// ContractDetails fetches the contract-details batch for c.
func (d *Dispatcher) ContractDetails(c Contract, timeout time.Duration) ([]ContractDetailsData, error) {
	b := newBatch[ContractDetailsData]()
	d.mu.Lock()
	d.details = b
	d.mu.Unlock()
	id := d.allocID()
	if err := d.client.RequestContractDetails(id, c); err != nil {
		return nil, err
	}
	return b.wait(timeout)
}

// HistoricalBars fetches a bar batch, e.g. duration "300 S" at "1 min".
func (d *Dispatcher) HistoricalBars(c Contract, duration, barSize string, timeout time.Duration) ([]Bar, error) {
	b := newBatch[Bar]()
	d.mu.Lock()
	d.bars = b
	d.mu.Unlock()
	id := d.allocID()
	if err := d.client.RequestHistoricalData(id, c, duration, barSize); err != nil {
		return nil, err
	}
	return b.wait(timeout)
}

// Positions fetches the full account position list. The subscription is
// cancelled once the end marker arrives or the timeout elapses.
func (d *Dispatcher) Positions(timeout time.Duration) ([]PositionData, error) {
	b := newBatch[PositionData]()
	d.mu.Lock()
	d.positions = b
	d.mu.Unlock()
	if err := d.client.RequestPositions(); err != nil {
		return nil, err
	}
	items, err := b.wait(timeout)
	if cerr := d.client.CancelPositions(); cerr != nil {
		d.log.WithError(cerr).Debug("cancel positions")
	}
	return items, err
}
