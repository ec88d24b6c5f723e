package monitor

import (
	"fmt"

	"optionwatch/internal/positions"
)

// Alert kinds; part of the deduplication id.
const (
	KindDelta  = "delta"
	KindProfit = "profit"
	KindDTE    = "dte"
	KindGap    = "gap"
)

// Alert is one triggered condition with its rendered notification text.
type Alert struct {
	Kind  string
	Key   string
	Value float64
	Text  string
}

// ID is the deterministic per-day identifier: the same condition on the
// same instrument produces the same id for the whole trading date.
func (a Alert) ID(tradingDate string) string {
	return fmt.Sprintf("%s_%s_%s", a.Kind, a.Key, tradingDate)
}

func gapAlert(symbol string, gap float64, date string) Alert {
	direction := "up"
	exposed := "PUT"
	if gap < 0 {
		direction = "down"
		exposed = "CALL"
	}
	text := fmt.Sprintf("⚡ %s\n%s gapped %s %.1f%% vs prior close\nExpect elevated volatility; %s side most exposed",
		date, symbol, direction, abs(gap)*100, exposed)
	return Alert{Kind: KindGap, Key: symbol, Value: gap, Text: text}
}

func shortDeltaAlert(key string, cfg positions.ContractConfig, delta, threshold float64, date string) Alert {
	side := "C"
	if cfg.Right == "PUT" {
		side = "P"
	}
	text := fmt.Sprintf("🚨 %s\n%s delta=%.3f crossed %.2f\n%s %g%s assignment risk is rising, review the position",
		date, key, delta, threshold, cfg.Symbol, cfg.Strike, side)
	return Alert{Kind: KindDelta, Key: key, Value: delta, Text: text}
}

func longDeltaAlert(key string, delta, floor float64, date string) Alert {
	text := fmt.Sprintf("🚨 %s\n%s delta=%.3f fell to or below %.2f\nPosition has lost directional sensitivity, consider closing",
		date, key, delta, floor)
	return Alert{Kind: KindDelta, Key: key, Value: delta, Text: text}
}

func profitAlert(key string, cfg positions.ContractConfig, pct, target, price float64, date string) Alert {
	action := "sell to close"
	if cfg.IsShort() {
		action = "buy to close"
	}
	text := fmt.Sprintf("💰 %s\n%s profit=%.1f%% reached target %.1f%% (%s %.2f→%.2f)\nConsider %s to lock in the gain",
		date, key, pct*100, target*100, cfg.Action, cfg.Premium, price, action)
	return Alert{Kind: KindProfit, Key: key, Value: pct, Text: text}
}

func dteAlert(key string, dte, minDTE int, date string) Alert {
	text := fmt.Sprintf("📅 %s\n%s has %d days to expiry, at or below %d\nTime decay accelerates from here, review the position",
		date, key, dte, minDTE)
	return Alert{Kind: KindDTE, Key: key, Value: float64(dte), Text: text}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
