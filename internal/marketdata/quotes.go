package marketdata

// PickPrice chooses the best available price from a snapshot, preferring
// last, then bid, then ask. A zero value means "no trade yet" on this feed
// and is treated as absent.
func PickPrice(snap map[string]float64) (float64, bool) {
	for _, field := range []string{"last", "bid", "ask"} {
		if v, ok := snap[field]; ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}

// PickClose chooses the reference closing price, preferring the prior
// day's close over the session close.
func PickClose(snap map[string]float64) (float64, bool) {
	for _, field := range []string{"prev_close", "close"} {
		if v, ok := snap[field]; ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}
