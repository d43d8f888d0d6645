package alerting

import "strings"

// AlertType identifies the condition that raised an alert. Together with the
// shop and product identifiers it forms the dedup key: at most one active,
// unresolved alert may exist per (shop, product, type).
type AlertType string

const (
	TypeVelocitySpike       AlertType = "VELOCITY_SPIKE"
	TypeFastSellingWarning  AlertType = "FAST_SELLING_WARNING"
	TypeImminentStockout    AlertType = "IMMINENT_STOCKOUT"
	TypeReorderSuggestion   AlertType = "REORDER_SUGGESTION"
	TypeVelocityTrendChange AlertType = "VELOCITY_TREND_CHANGE"
	TypeAIPredictionAlert   AlertType = "AI_PREDICTION_ALERT"
)

// Severity orders alerts from informational to critical.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity; unknown values rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Wire returns the lowercase form used in outbound payloads.
func (s Severity) Wire() string {
	return strings.ToLower(string(s))
}
