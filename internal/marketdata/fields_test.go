package marketdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldNameMapping(t *testing.T) {
	assert.Equal(t, "bid", fieldName(1))
	assert.Equal(t, "last", fieldName(4))
	assert.Equal(t, "prev_close", fieldName(9))

	// delayed codes alias to the live names
	assert.Equal(t, "bid", fieldName(66))
	assert.Equal(t, "last", fieldName(68))
	assert.Equal(t, "prev_close", fieldName(75))

	// unmapped codes stay visible under a generic key
	assert.Equal(t, "p999", fieldName(999))
}

func TestValidPrice(t *testing.T) {
	assert.True(t, validPrice(1, 100.5))
	assert.True(t, validPrice(1, 0))
	assert.False(t, validPrice(1, -1))
	assert.False(t, validPrice(4, math.NaN()))
	assert.False(t, validPrice(68, math.Inf(1)))

	// non-price codes pass through untouched
	assert.True(t, validPrice(0, -1))
}

func TestCleanGreek(t *testing.T) {
	v, ok := cleanGreek(-0.25)
	assert.True(t, ok)
	assert.Equal(t, -0.25, v)

	_, ok = cleanGreek(-1)
	assert.False(t, ok)
	_, ok = cleanGreek(math.NaN())
	assert.False(t, ok)
	_, ok = cleanGreek(math.Inf(-1))
	assert.False(t, ok)
}
