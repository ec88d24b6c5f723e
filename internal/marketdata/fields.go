package marketdata

import (
	"fmt"
	"math"
)

// fieldNames maps gateway tick-type codes to semantic field names. The
// delayed-feed codes (66-75) alias to the same names as their live
// counterparts so consumers never care which feed produced a value.
var fieldNames = map[int]string{
	0:  "bid_size",
	1:  "bid",
	2:  "ask",
	3:  "ask_size",
	4:  "last",
	5:  "last_size",
	6:  "high",
	7:  "low",
	8:  "close",
	9:  "prev_close",
	14: "open",
	27: "bid_iv",
	28: "ask_iv",
	31: "last_iv",
	49: "call_oi",
	50: "put_oi",
	55: "call_vol",
	56: "put_vol",
	66: "bid",       // delayed
	67: "ask",       // delayed
	68: "last",      // delayed
	69: "bid_size",  // delayed
	70: "ask_size",  // delayed
	71: "last_size", // delayed
	72: "high",      // delayed
	73: "low",       // delayed
	74: "volume",    // delayed
	75: "prev_close",
}

// priceFields are the codes whose values are prices; negative or
// non-finite updates on these are feed noise and must not overwrite a
// known-good value.
var priceFields = map[int]bool{
	1: true, 2: true, 4: true, 6: true, 7: true, 9: true, 14: true, 37: true,
	66: true, 67: true, 68: true, 72: true, 73: true, 75: true, 76: true,
}

// greekSides tags option-computation tick types by the quote side that
// produced them; 10-13 are live, 80-83 their delayed counterparts.
var greekSides = map[int]string{
	10: "bid",
	11: "ask",
	12: "last",
	13: "model",
	80: "bid",
	81: "ask",
	82: "last",
	83: "model",
}

// fieldName resolves a tick-type code, falling back to a generic p<code>
// key so unmapped data is still visible to debugging callers.
func fieldName(code int) string {
	if name, ok := fieldNames[code]; ok {
		return name
	}
	return fmt.Sprintf("p%d", code)
}

// validPrice reports whether a price update should be applied.
func validPrice(code int, v float64) bool {
	if !priceFields[code] {
		return true
	}
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// cleanGreek filters the gateway's "not computable" sentinel (-1) and
// non-finite values. A false return means keep the previously cached value.
func cleanGreek(v float64) (float64, bool) {
	if v == -1 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
