package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/velocity"
)

func intPtr(v int) *int { return &v }

func TestClassifyNoSignal(t *testing.T) {
	pred := velocity.Prediction{
		DailyVelocity: decimal.NewFromInt(2),
		Trend:         velocity.TrendStable,
	}

	signal := Classify(pred)
	if signal.ShouldAlert {
		t.Fatalf("平稳流速不应告警: %+v", signal)
	}
	if signal.Level != LevelLow {
		t.Fatalf("默认风险等级应为 LOW: %s", signal.Level)
	}
}

func TestClassifySingleRules(t *testing.T) {
	cases := []struct {
		name     string
		pred     velocity.Prediction
		wantType alerting.AlertType
		wantSev  alerting.Severity
		wantLvl  Level
	}{
		{
			name: "velocity spike",
			pred: velocity.Prediction{
				DailyVelocity: decimal.NewFromInt(10),
				Acceleration:  decimal.NewFromInt(6),
				Trend:         velocity.TrendIncreasing,
			},
			wantType: alerting.TypeVelocitySpike,
			wantSev:  alerting.SeverityHigh,
			wantLvl:  LevelHigh,
		},
		{
			name: "fast selling",
			pred: velocity.Prediction{
				DailyVelocity: decimal.NewFromInt(20),
				Acceleration:  decimal.NewFromInt(1),
				Trend:         velocity.TrendIncreasing,
			},
			wantType: alerting.TypeFastSellingWarning,
			wantSev:  alerting.SeverityMedium,
			wantLvl:  LevelMedium,
		},
		{
			name: "imminent stockout",
			pred: velocity.Prediction{
				DailyVelocity:     decimal.NewFromInt(1),
				Trend:             velocity.TrendStable,
				DaysUntilStockout: intPtr(3),
			},
			wantType: alerting.TypeImminentStockout,
			wantSev:  alerting.SeverityCritical,
			wantLvl:  LevelCritical,
		},
		{
			name: "trend change",
			pred: velocity.Prediction{
				DailyVelocity: decimal.NewFromInt(5),
				Acceleration:  decimal.NewFromInt(2),
				Trend:         velocity.TrendAccelerating,
				// spike rule needs accel > daily*0.5, kept below on purpose
				DaysUntilStockout: intPtr(30),
			},
			wantType: alerting.TypeVelocityTrendChange,
			wantSev:  alerting.SeverityHigh,
			wantLvl:  LevelHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signal := Classify(tc.pred)
			if !signal.ShouldAlert {
				t.Fatal("应触发告警")
			}
			if signal.Type != tc.wantType {
				t.Fatalf("类型不符: got %s, want %s", signal.Type, tc.wantType)
			}
			if signal.Severity != tc.wantSev {
				t.Fatalf("严重级别不符: got %s, want %s", signal.Severity, tc.wantSev)
			}
			if signal.Level != tc.wantLvl {
				t.Fatalf("风险等级不符: got %s, want %s", signal.Level, tc.wantLvl)
			}
		})
	}
}

func TestClassifyKeepsHighestSeverity(t *testing.T) {
	// Matches both the trend-change rule and the imminent-stockout rule; the
	// critical verdict must win even though the trend rule is listed later.
	pred := velocity.Prediction{
		DailyVelocity:     decimal.NewFromInt(10),
		Acceleration:      decimal.NewFromInt(2),
		Trend:             velocity.TrendAccelerating,
		DaysUntilStockout: intPtr(2),
	}

	signal := Classify(pred)
	if signal.Type != alerting.TypeImminentStockout {
		t.Fatalf("应保留最高严重级别的信号: %s", signal.Type)
	}
	if signal.Severity != alerting.SeverityCritical {
		t.Fatalf("severity 应为 CRITICAL: %s", signal.Severity)
	}
}

func TestClassifyTieKeepsEarliestRule(t *testing.T) {
	// Spike and trend-change are both HIGH; the spike rule comes first.
	pred := velocity.Prediction{
		DailyVelocity: decimal.NewFromInt(10),
		Acceleration:  decimal.NewFromInt(8),
		Trend:         velocity.TrendAccelerating,
	}

	signal := Classify(pred)
	if signal.Type != alerting.TypeVelocitySpike {
		t.Fatalf("同级信号应保留先匹配的规则: %s", signal.Type)
	}
}
