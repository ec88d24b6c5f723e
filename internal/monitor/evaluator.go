package monitor

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"optionwatch/internal/marketdata"
	"optionwatch/internal/positions"
)

// Rule holds the alert thresholds for one monitoring run.
type Rule struct {
	DeltaUpper      float64 // short positions alert at |delta| >= this
	DeltaLower      float64 // long positions alert at |delta| <= this
	ProfitTarget    float64 // fraction of reference premium
	ProfitShortOnly bool    // restrict profit alerts to premium-collecting positions
	MinDTE          int
	GapThreshold    float64 // fraction vs prior close
}

// DefaultRule mirrors the strategy the monitor ships with.
func DefaultRule() Rule {
	return Rule{
		DeltaUpper:      0.30,
		DeltaLower:      0.10,
		ProfitTarget:    0.50,
		ProfitShortOnly: true,
		MinDTE:          21,
		GapThreshold:    0.03,
	}
}

// Evaluator turns one cycle's snapshots into triggered alerts. It is
// stateless; deduplication happens in the Ledger.
type Evaluator struct {
	rule Rule
	log  *logrus.Entry
}

// NewEvaluator builds an evaluator for the rule set.
func NewEvaluator(rule Rule, log *logrus.Entry) *Evaluator {
	return &Evaluator{rule: rule, log: log}
}

// Underlying checks the overnight gap of one underlying against its prior
// close. Missing price or close yields no alert.
func (e *Evaluator) Underlying(symbol string, snap map[string]float64, prevClose float64, date string) []Alert {
	price, ok := marketdata.PickPrice(snap)
	if !ok || prevClose == 0 {
		e.log.WithField("symbol", symbol).Debug("no price or prior close yet")
		return nil
	}
	gap := (price - prevClose) / prevClose
	e.log.WithFields(logrus.Fields{"symbol": symbol, "price": price, "gap": gap}).Info("underlying checked")
	if math.Abs(gap) >= e.rule.GapThreshold {
		return []Alert{gapAlert(symbol, gap, date)}
	}
	return nil
}

// Option evaluates the delta, profit, and DTE conditions for one
// monitored position. Both a price and a delta must be present; otherwise
// the instrument is skipped for this cycle (skipped=true) and a warning
// logged.
func (e *Evaluator) Option(key string, cfg positions.ContractConfig, snap map[string]float64, today time.Time, date string) (alerts []Alert, skipped bool) {
	price, hasPrice := marketdata.PickPrice(snap)
	delta, hasDelta := snap["delta"]
	if !hasPrice || !hasDelta {
		e.log.WithField("key", key).Warn("incomplete market data, skipping this cycle")
		return nil, true
	}

	deltaAbs := math.Abs(delta)
	if cfg.IsShort() {
		if deltaAbs >= e.rule.DeltaUpper {
			alerts = append(alerts, shortDeltaAlert(key, cfg, deltaAbs, e.rule.DeltaUpper, date))
		}
	} else if deltaAbs <= e.rule.DeltaLower {
		alerts = append(alerts, longDeltaAlert(key, deltaAbs, e.rule.DeltaLower, date))
	}

	var pct float64
	if cfg.Premium > 0 {
		if cfg.IsShort() {
			pct = (cfg.Premium - price) / cfg.Premium
		} else {
			pct = (price - cfg.Premium) / cfg.Premium
		}
		if pct >= e.rule.ProfitTarget && (cfg.IsShort() || !e.rule.ProfitShortOnly) {
			alerts = append(alerts, profitAlert(key, cfg, pct, e.rule.ProfitTarget, price, date))
		}
	}

	dte, err := cfg.DTE(today)
	if err == nil && dte <= e.rule.MinDTE {
		alerts = append(alerts, dteAlert(key, dte, e.rule.MinDTE, date))
	}

	fields := logrus.Fields{"key": key, "price": price, "delta": deltaAbs, "profit_pct": pct}
	if iv, ok := snap["iv"]; ok {
		fields["iv"] = iv
	}
	if err == nil {
		fields["dte"] = dte
	}
	e.log.WithFields(fields).Info("option checked")
	return alerts, false
}
