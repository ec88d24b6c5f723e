package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickPrice(t *testing.T) {
	price, ok := PickPrice(map[string]float64{"last": 2.0, "bid": 1.9, "ask": 2.1})
	assert.True(t, ok)
	assert.Equal(t, 2.0, price)

	// zero last means no trade yet; fall through to bid
	price, ok = PickPrice(map[string]float64{"last": 0, "bid": 1.9, "ask": 2.1})
	assert.True(t, ok)
	assert.Equal(t, 1.9, price)

	price, ok = PickPrice(map[string]float64{"ask": 2.1})
	assert.True(t, ok)
	assert.Equal(t, 2.1, price)

	_, ok = PickPrice(map[string]float64{"high": 3.0})
	assert.False(t, ok)
	_, ok = PickPrice(nil)
	assert.False(t, ok)
}

func TestPickClose(t *testing.T) {
	v, ok := PickClose(map[string]float64{"prev_close": 556, "close": 560})
	assert.True(t, ok)
	assert.Equal(t, 556.0, v)

	v, ok = PickClose(map[string]float64{"close": 560})
	assert.True(t, ok)
	assert.Equal(t, 560.0, v)

	_, ok = PickClose(map[string]float64{})
	assert.False(t, ok)
}
