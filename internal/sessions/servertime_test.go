package sessions

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeTimeSource struct {
	mu    sync.Mutex
	t     time.Time
	err   error
	calls int
}

func (f *fakeTimeSource) ServerTime(timeout time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.t, f.err
}

func (f *fakeTimeSource) set(t time.Time, err error) {
	f.mu.Lock()
	f.t, f.err = t, err
	f.mu.Unlock()
}

func TestOracleFetchAndRefresh(t *testing.T) {
	remote := time.Date(2025, 7, 24, 14, 0, 0, 0, time.UTC)
	src := &fakeTimeSource{t: remote}
	o := NewOracle(src, testEntry())

	got, ok := o.ServerTime(OracleOptions{Retries: 1})
	require.True(t, ok)
	assert.Equal(t, remote, got)

	last, known := o.LastKnown()
	assert.True(t, known)
	assert.Equal(t, remote, last)
}

func TestOracleSoftCache(t *testing.T) {
	remote := time.Date(2025, 7, 24, 14, 0, 0, 0, time.UTC)
	src := &fakeTimeSource{t: remote}
	o := NewOracle(src, testEntry())

	base := time.Now()
	o.now = func() time.Time { return base }
	_, ok := o.ServerTime(OracleOptions{Retries: 1})
	require.True(t, ok)

	// remote goes dark; within the soft cache age the cached value serves
	src.set(time.Time{}, errors.New("down"))
	o.now = func() time.Time { return base.Add(60 * time.Second) }
	got, ok := o.ServerTime(OracleOptions{Retries: 1})
	require.True(t, ok)
	assert.Equal(t, remote, got)
}

func TestOracleExtrapolation(t *testing.T) {
	remote := time.Date(2025, 7, 24, 14, 0, 0, 0, time.UTC)
	src := &fakeTimeSource{t: remote}
	o := NewOracle(src, testEntry())

	base := time.Now()
	o.now = func() time.Time { return base }
	_, ok := o.ServerTime(OracleOptions{Retries: 1})
	require.True(t, ok)

	src.set(time.Time{}, errors.New("down"))

	// past the soft cache, the monotonic clock bridges the gap
	o.now = func() time.Time { return base.Add(10 * time.Minute) }
	got, ok := o.ServerTime(OracleOptions{Retries: 1, Extrapolate: true})
	require.True(t, ok)
	assert.Equal(t, remote.Add(10*time.Minute), got)

	// extrapolation has a hard ceiling
	o.now = func() time.Time { return base.Add(7 * time.Hour) }
	_, ok = o.ServerTime(OracleOptions{Retries: 1, Extrapolate: true})
	assert.False(t, ok)

	// an explicit hard cache age can still serve the stale value
	got, ok = o.ServerTime(OracleOptions{Retries: 1, Extrapolate: true, HardCacheAge: 8 * time.Hour})
	require.True(t, ok)
	assert.Equal(t, remote, got)
}

func TestOracleNeverFetched(t *testing.T) {
	src := &fakeTimeSource{err: errors.New("down")}
	o := NewOracle(src, testEntry())

	_, ok := o.ServerTime(OracleOptions{Retries: 2, Extrapolate: true})
	assert.False(t, ok)
	assert.Equal(t, 2, src.calls)

	_, known := o.Age()
	assert.False(t, known)
}
