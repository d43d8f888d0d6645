package risk

import (
	"github.com/shopspring/decimal"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/velocity"
)

// Level grades the stockout risk of a product.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

var (
	spikeBand         = decimal.RequireFromString("0.5")
	fastSellingPerDay = decimal.NewFromInt(15)
)

const imminentStockoutDays = 7

// Signal is the classifier verdict for one product and run.
type Signal struct {
	ShouldAlert bool
	Level       Level
	Type        alerting.AlertType
	Severity    alerting.Severity
}

type rule struct {
	match   func(pred velocity.Prediction) bool
	verdict Signal
}

// Rules are evaluated in order; when several match, the highest severity
// verdict wins and ties keep the earliest rule.
var rules = []rule{
	{
		match: func(p velocity.Prediction) bool {
			return p.Acceleration.GreaterThan(p.DailyVelocity.Mul(spikeBand))
		},
		verdict: Signal{Level: LevelHigh, Type: alerting.TypeVelocitySpike, Severity: alerting.SeverityHigh},
	},
	{
		match: func(p velocity.Prediction) bool {
			return p.DailyVelocity.GreaterThan(fastSellingPerDay) && p.Trend == velocity.TrendIncreasing
		},
		verdict: Signal{Level: LevelMedium, Type: alerting.TypeFastSellingWarning, Severity: alerting.SeverityMedium},
	},
	{
		match: func(p velocity.Prediction) bool {
			return p.DaysUntilStockout != nil && *p.DaysUntilStockout <= imminentStockoutDays
		},
		verdict: Signal{Level: LevelCritical, Type: alerting.TypeImminentStockout, Severity: alerting.SeverityCritical},
	},
	{
		match: func(p velocity.Prediction) bool {
			return p.Trend == velocity.TrendAccelerating
		},
		verdict: Signal{Level: LevelHigh, Type: alerting.TypeVelocityTrendChange, Severity: alerting.SeverityHigh},
	},
}

// Classify reduces the velocity prediction to a single risk signal.
// ShouldAlert is false when no rule matches, regardless of the risk level a
// previous run may have computed.
func Classify(pred velocity.Prediction) Signal {
	best := Signal{Level: LevelLow, Severity: alerting.SeverityInfo}
	for _, r := range rules {
		if !r.match(pred) {
			continue
		}
		if !best.ShouldAlert || r.verdict.Severity.Rank() > best.Severity.Rank() {
			best = r.verdict
			best.ShouldAlert = true
		}
	}
	return best
}
