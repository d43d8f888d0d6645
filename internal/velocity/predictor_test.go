package velocity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// twoWeeks fabricates daily samples: recent covers now-1d..now-7d, prior
// covers now-8d..now-14d.
func twoWeeks(now time.Time, recent, prior int64) []Sample {
	samples := make([]Sample, 0, 14)
	for i := 1; i <= 7; i++ {
		samples = append(samples, Sample{Date: now.AddDate(0, 0, -i), UnitsSold: recent})
	}
	for i := 8; i <= 14; i++ {
		samples = append(samples, Sample{Date: now.AddDate(0, 0, -i), UnitsSold: prior})
	}
	return samples
}

func TestPredictVelocityFigures(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	pred := Predict(now, twoWeeks(now, 10, 5), 25)

	if !pred.DailyVelocity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("daily 应为 10: %s", pred.DailyVelocity)
	}
	if !pred.WeeklyVelocity.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("weekly 应为 70: %s", pred.WeeklyVelocity)
	}
	if !pred.MonthlyVelocity.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("monthly 应为 105: %s", pred.MonthlyVelocity)
	}
	if !pred.Acceleration.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("acceleration 应为 5: %s", pred.Acceleration)
	}
	if !pred.PredictedVelocity.Equal(decimal.RequireFromString("11")) {
		t.Fatalf("predicted 应为 11: %s", pred.PredictedVelocity)
	}
	if !pred.HasSamples {
		t.Fatal("HasSamples 应为 true")
	}
	if pred.Confidence != 0.8 {
		t.Fatalf("confidence 应为 0.8: %f", pred.Confidence)
	}
}

func TestPredictStockoutRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	pred := Predict(now, twoWeeks(now, 10, 10), 25)

	if pred.DaysUntilStockout == nil {
		t.Fatal("正流速应给出 stockout 天数")
	}
	if *pred.DaysUntilStockout != 3 {
		t.Fatalf("25/10 应向上取整为 3 天: %d", *pred.DaysUntilStockout)
	}
	if pred.PredictedStockoutDate == nil {
		t.Fatal("应给出预计断货日期")
	}
	if want := now.AddDate(0, 0, 3); !pred.PredictedStockoutDate.Equal(want) {
		t.Fatalf("断货日期不符: got %s, want %s", pred.PredictedStockoutDate, want)
	}
}

func TestPredictTrends(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		recent int64
		prior  int64
		want   Trend
	}{
		{name: "doubled sales accelerate", recent: 10, prior: 5, want: TrendAccelerating},
		{name: "mild growth increases", recent: 10, prior: 9, want: TrendIncreasing},
		{name: "halved sales decrease", recent: 5, prior: 10, want: TrendDecreasing},
		{name: "flat sales stay stable", recent: 10, prior: 10, want: TrendStable},
		// 加速判定为严格大于: acceleration == daily*0.2 仍属 INCREASING。
		{name: "growth at exactly the band increases", recent: 10, prior: 8, want: TrendIncreasing},
		{name: "growth just past the band accelerates", recent: 8, prior: 6, want: TrendAccelerating},
		// 同理, acceleration == -daily*0.1 仍属 STABLE。
		{name: "decay at exactly the band stays stable", recent: 10, prior: 11, want: TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred := Predict(now, twoWeeks(now, tc.recent, tc.prior), 1000)
			if pred.Trend != tc.want {
				t.Fatalf("trend got %s, want %s", pred.Trend, tc.want)
			}
		})
	}
}

func TestPredictNoSamples(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	pred := Predict(now, nil, 50)

	if pred.HasSamples {
		t.Fatal("无样本时 HasSamples 应为 false")
	}
	if !pred.DailyVelocity.IsZero() {
		t.Fatalf("无样本 daily 应为 0: %s", pred.DailyVelocity)
	}
	if pred.Trend != TrendStable {
		t.Fatalf("无样本 trend 应为 STABLE: %s", pred.Trend)
	}
	if pred.DaysUntilStockout != nil {
		t.Fatal("零流速不应估算 stockout 天数")
	}
	if pred.Confidence != 0.3 {
		t.Fatalf("无样本 confidence 应为 0.3: %f", pred.Confidence)
	}
}

func TestPredictIgnoresOutOfWindowSamples(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Date: now.AddDate(0, 0, -31), UnitsSold: 1000},
		{Date: now, UnitsSold: 1000},
		{Date: now.AddDate(0, 0, -1), UnitsSold: 7},
	}

	pred := Predict(now, samples, 100)
	if !pred.DailyVelocity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("窗口外样本不应计入: %s", pred.DailyVelocity)
	}
	if !pred.MonthlyVelocity.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("monthly 应为 7: %s", pred.MonthlyVelocity)
	}
}
