package sessions

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeSource resolves the remote authoritative clock, one attempt per call.
type TimeSource interface {
	ServerTime(timeout time.Duration) (time.Time, error)
}

// extrapolateMax is the absolute ceiling on bridging a remote-clock outage
// with the local monotonic clock. Past this, drift could mask a genuinely
// extended outage.
const extrapolateMax = 6 * time.Hour

const retryPause = 200 * time.Millisecond

// OracleOptions tune one resolution call. Zero values take defaults:
// 3 retries, 5s timeout, 90s soft cache age.
type OracleOptions struct {
	Retries      int
	Timeout      time.Duration
	Extrapolate  bool
	SoftCacheAge time.Duration
	HardCacheAge time.Duration // optional stale-cache ceiling, 0 = unset
}

func (o OracleOptions) withDefaults() OracleOptions {
	if o.Retries == 0 {
		o.Retries = 3
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.SoftCacheAge == 0 {
		o.SoftCacheAge = 90 * time.Second
	}
	return o
}

// Oracle resolves "current authoritative time" from a remote source with
// retry, short-term caching, and monotonic extrapolation across brief
// outages. Only a successful remote fetch refreshes the cache.
type Oracle struct {
	src TimeSource
	log *logrus.Entry
	now func() time.Time

	mu         sync.Mutex
	last       time.Time
	capturedAt time.Time
}

// NewOracle wraps a time source.
func NewOracle(src TimeSource, log *logrus.Entry) *Oracle {
	return &Oracle{src: src, log: log, now: time.Now}
}

// ServerTime resolves the current remote time. The bool is false only when
// every recovery path is exhausted: all retries failed, the cache is too
// old to trust, and extrapolation is disabled or past its ceiling.
func (o *Oracle) ServerTime(opts OracleOptions) (time.Time, bool) {
	opts = opts.withDefaults()
	for attempt := 0; attempt < opts.Retries; attempt++ {
		t, err := o.src.ServerTime(opts.Timeout)
		if err == nil {
			o.mu.Lock()
			o.last = t
			o.capturedAt = o.now()
			o.mu.Unlock()
			return t, true
		}
		o.log.WithError(err).WithField("attempt", attempt+1).Debug("server time request failed")
		time.Sleep(retryPause)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last.IsZero() {
		return time.Time{}, false
	}
	age := o.now().Sub(o.capturedAt)
	if age < opts.SoftCacheAge {
		return o.last, true
	}
	if opts.Extrapolate && age < extrapolateMax {
		return o.last.Add(age), true
	}
	if opts.HardCacheAge > 0 && age < opts.HardCacheAge {
		return o.last, true
	}
	return time.Time{}, false
}

// Age returns the time since the last successful remote fetch.
func (o *Oracle) Age() (time.Duration, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last.IsZero() {
		return 0, false
	}
	return o.now().Sub(o.capturedAt), true
}

// LastKnown returns the most recent successfully fetched value, unadjusted.
func (o *Oracle) LastKnown() (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last, !o.last.IsZero()
}
