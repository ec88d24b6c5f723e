package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTradingHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := func(hour, min int) time.Time {
		return time.Date(2025, 7, 24, hour, min, 0, 0, loc)
	}

	spec := "20250723:CLOSED;20250724:0930-1600;20250725:0930-1600"
	assert.True(t, withinTradingHours(spec, at(10, 0), loc))
	assert.True(t, withinTradingHours(spec, at(9, 30), loc))
	assert.False(t, withinTradingHours(spec, at(9, 29), loc))
	// half-open: the close minute itself is outside
	assert.False(t, withinTradingHours(spec, at(16, 0), loc))
	assert.False(t, withinTradingHours(spec, at(16, 5), loc))

	// explicit end dates
	assert.True(t, withinTradingHours("20250724:0930-20250724:1600", at(12, 0), loc))

	// comma ranges without a date inherit the segment's
	split := "20250724:0700-1130,1200-1600"
	assert.True(t, withinTradingHours(split, at(8, 0), loc))
	assert.False(t, withinTradingHours(split, at(11, 45), loc))
	assert.True(t, withinTradingHours(split, at(12, 30), loc))

	// a different day never matches
	assert.False(t, withinTradingHours("20250725:0930-1600", at(10, 0), loc))
	// garbage segments are skipped, not fatal
	assert.False(t, withinTradingHours("garbage;;20250724:25xx-9900", at(10, 0), loc))
}
