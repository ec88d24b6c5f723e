package marketdata

import (
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"optionwatch/internal/broker"
)

// greeksTickList is the extra generic-tick list requested for option
// subscriptions so the gateway computes IV and greeks.
const greeksTickList = "101,106,165,221,225,233,236,258,293,294,411,456"

const pollEvery = 50 * time.Millisecond

// Registry owns market-data subscriptions. Ticks for every request id are
// normalized into a per-request bucket; requests registered as long-lived
// subscriptions are mirrored into the Store under their instrument key so
// the monitoring loop can read the latest snapshot at any time.
type Registry struct {
	d     *broker.Dispatcher
	store *Store
	log   *logrus.Entry

	mu       sync.Mutex
	byReq    map[int64]map[string]float64
	keyByReq map[int64]string
}

// NewRegistry wires a registry into the dispatcher's tick stream.
func NewRegistry(d *broker.Dispatcher, log *logrus.Entry) *Registry {
	r := &Registry{
		d:        d,
		store:    NewStore(),
		log:      log,
		byReq:    map[int64]map[string]float64{},
		keyByReq: map[int64]string{},
	}
	d.SetSink(r)
	return r
}

// Subscribe opens a long-lived market-data subscription for c under the
// application key. Options get the extended greek tick list. Returns the
// request id; it does not wait for data.
func (r *Registry) Subscribe(c broker.Contract, key string) (int64, error) {
	id := r.d.NextRequestID()
	r.mu.Lock()
	r.keyByReq[id] = key
	r.mu.Unlock()
	if err := r.d.RequestMarketData(id, c, tickListFor(c)); err != nil {
		r.mu.Lock()
		delete(r.keyByReq, id)
		r.mu.Unlock()
		return 0, err
	}
	return id, nil
}

// Unsubscribe cancels a subscription and deletes its snapshot.
func (r *Registry) Unsubscribe(reqID int64) {
	r.d.CancelMarketData(reqID)
	r.mu.Lock()
	key, ok := r.keyByReq[reqID]
	delete(r.keyByReq, reqID)
	delete(r.byReq, reqID)
	r.mu.Unlock()
	if ok {
		r.store.Delete(key)
	}
}

// Snapshot returns a copy of the latest fields cached for key. Never
// blocks; empty map when nothing has arrived yet.
func (r *Registry) Snapshot(key string) map[string]float64 {
	return r.store.Get(key)
}

// QuoteSummary is the degraded-gracefully result of a one-shot quote.
type QuoteSummary struct {
	Price    float64
	Delta    float64
	IV       float64
	Close    float64
	HasPrice bool
	HasDelta bool
	HasIV    bool
	HasClose bool
}

// SnapshotOnce issues a one-shot market-data request and polls until a
// price and, for options, a valid delta are cached, or the timeout
// elapses. The request is always cancelled before returning; whatever
// arrived by then is summarized.
func (r *Registry) SnapshotOnce(c broker.Contract, timeout time.Duration) QuoteSummary {
	id := r.d.NextRequestID()
	if err := r.d.RequestMarketData(id, c, tickListFor(c)); err != nil {
		r.log.WithError(err).WithField("contract", c.String()).Warn("one-shot request failed")
		return QuoteSummary{}
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := r.reqSnapshot(id)
		_, priceReady := PickPrice(snap)
		_, hasDelta := snap["delta"]
		if priceReady && (!c.IsOption() || hasDelta) {
			break
		}
		time.Sleep(pollEvery)
	}
	r.d.CancelMarketData(id)

	r.mu.Lock()
	data := r.byReq[id]
	delete(r.byReq, id)
	r.mu.Unlock()

	var out QuoteSummary
	out.Price, out.HasPrice = PickPrice(data)
	out.Close, out.HasClose = PickClose(data)
	out.Delta, out.HasDelta = data["delta"]
	out.IV, out.HasIV = data["iv"]
	return out
}

func (r *Registry) reqSnapshot(reqID int64) map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]float64{}
	for field, v := range r.byReq[reqID] {
		out[field] = v
	}
	return out
}

func (r *Registry) set(reqID int64, field string, v float64) {
	r.mu.Lock()
	bucket, ok := r.byReq[reqID]
	if !ok {
		bucket = map[string]float64{}
		r.byReq[reqID] = bucket
	}
	bucket[field] = v
	key, mirrored := r.keyByReq[reqID]
	r.mu.Unlock()
	if mirrored {
		r.store.Set(key, field, v)
	}
}

// HandleTickPrice implements broker.TickSink. Invalid prices are dropped,
// keeping the prior cached value.
func (r *Registry) HandleTickPrice(reqID int64, field int, price float64) {
	if !validPrice(field, price) {
		return
	}
	r.set(reqID, fieldName(field), price)
}

// HandleTickSize implements broker.TickSink.
func (r *Registry) HandleTickSize(reqID int64, field int, size float64) {
	r.set(reqID, "size_"+strconv.Itoa(field), size)
}

// HandleTickGeneric implements broker.TickSink.
func (r *Registry) HandleTickGeneric(reqID int64, field int, value float64) {
	r.set(reqID, "g"+strconv.Itoa(field), value)
}

// HandleTickOption implements broker.TickSink. Each greek is written only
// when valid so a transient unavailable tick never erases a known value;
// valid greeks are additionally recorded under side-qualified keys.
func (r *Registry) HandleTickOption(reqID int64, field int, g broker.Greeks) {
	side := greekSides[field]
	for _, entry := range []struct {
		name string
		v    float64
		side bool
	}{
		{"iv", g.IV, true},
		{"delta", g.Delta, true},
		{"gamma", g.Gamma, true},
		{"vega", g.Vega, true},
		{"theta", g.Theta, true},
		{"und_price", g.UndPrice, false},
	} {
		v, ok := cleanGreek(entry.v)
		if !ok {
			continue
		}
		r.set(reqID, entry.name, v)
		if side != "" && entry.side {
			r.set(reqID, side+"_"+entry.name, v)
		}
	}
}

func tickListFor(c broker.Contract) string {
	if c.IsOption() {
		return greeksTickList
	}
	return ""
}
