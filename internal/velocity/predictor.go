package velocity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend qualifies the direction of a product's sales velocity.
type Trend string

const (
	TrendStable       Trend = "STABLE"
	TrendIncreasing   Trend = "INCREASING"
	TrendDecreasing   Trend = "DECREASING"
	TrendAccelerating Trend = "ACCELERATING"
)

var (
	decSeven         = decimal.NewFromInt(7)
	accelerationBand = decimal.RequireFromString("0.2")
	decayBand        = decimal.RequireFromString("0.1")
	smoothingFactor  = decimal.RequireFromString("1.1")
)

const (
	confidenceFloor       = 0.3
	confidenceCeiling     = 0.95
	confidenceWithSamples = 0.8
)

// Sample is one day's worth of sales for a single product.
type Sample struct {
	Date      time.Time
	UnitsSold int64
}

// Prediction aggregates trailing sales into velocity figures and a
// stockout projection.
type Prediction struct {
	DailyVelocity     decimal.Decimal
	WeeklyVelocity    decimal.Decimal
	MonthlyVelocity   decimal.Decimal
	Acceleration      decimal.Decimal
	PredictedVelocity decimal.Decimal
	Trend             Trend
	// DaysUntilStockout is nil when the daily velocity is not positive.
	DaysUntilStockout     *int
	PredictedStockoutDate *time.Time
	Confidence            float64
	HasSamples            bool
}

// Predict derives velocity figures from the trailing 30 days of samples
// relative to now. Zero samples yields zeroed figures and a STABLE trend,
// never an error.
func Predict(now time.Time, samples []Sample, stock int64) Prediction {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	monthAgo := now.AddDate(0, 0, -30)

	var last7, prev7, month int64
	for _, s := range samples {
		if s.Date.Before(monthAgo) || !s.Date.Before(now) {
			continue
		}
		month += s.UnitsSold
		if !s.Date.Before(weekAgo) {
			last7 += s.UnitsSold
		} else if !s.Date.Before(twoWeeksAgo) {
			prev7 += s.UnitsSold
		}
	}

	daily := decimal.NewFromInt(last7).Div(decSeven)
	acceleration := daily.Sub(decimal.NewFromInt(prev7).Div(decSeven))

	pred := Prediction{
		DailyVelocity:     daily,
		WeeklyVelocity:    decimal.NewFromInt(last7),
		MonthlyVelocity:   decimal.NewFromInt(month),
		Acceleration:      acceleration,
		PredictedVelocity: daily.Mul(smoothingFactor),
		Trend:             classifyTrend(daily, acceleration),
		Confidence:        confidence(len(samples) > 0),
		HasSamples:        len(samples) > 0,
	}

	if daily.IsPositive() {
		days := int(decimal.NewFromInt(stock).Div(daily).Ceil().IntPart())
		date := now.AddDate(0, 0, days)
		pred.DaysUntilStockout = &days
		pred.PredictedStockoutDate = &date
	}

	return pred
}

func classifyTrend(daily, acceleration decimal.Decimal) Trend {
	switch {
	case acceleration.GreaterThan(daily.Mul(accelerationBand)):
		return TrendAccelerating
	case acceleration.IsPositive():
		return TrendIncreasing
	case acceleration.LessThan(daily.Mul(decayBand).Neg()):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// confidence is a coarse presence-of-data score, not a statistical fit.
func confidence(hasSamples bool) float64 {
	score := confidenceFloor
	if hasSamples {
		score = confidenceWithSamples
	}
	if score < confidenceFloor {
		score = confidenceFloor
	}
	if score > confidenceCeiling {
		score = confidenceCeiling
	}
	return score
}
