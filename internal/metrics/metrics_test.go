package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestEvaluateStatuses(t *testing.T) {
	five := int64(5)

	cases := []struct {
		name     string
		stock    int64
		velocity *decimal.Decimal
		th       Thresholds
		want     Status
	}{
		{name: "empty shelf is critical", stock: 0, velocity: dec("2"), th: Thresholds{LowStockUnits: 10}, want: StatusCritical},
		{name: "at derived critical units", stock: 3, velocity: nil, th: Thresholds{LowStockUnits: 10}, want: StatusCritical},
		{name: "critical units override", stock: 5, velocity: nil, th: Thresholds{LowStockUnits: 10, CriticalStockUnits: &five}, want: StatusCritical},
		{name: "runway below critical days", stock: 20, velocity: dec("10"), th: Thresholds{LowStockUnits: 10}, want: StatusCritical},
		{name: "at low threshold", stock: 10, velocity: dec("0.5"), th: Thresholds{LowStockUnits: 10}, want: StatusLow},
		{name: "zero velocity never sells out", stock: 8, velocity: dec("0"), th: Thresholds{LowStockUnits: 10}, want: StatusLow},
		{name: "healthy with unknown velocity", stock: 100, velocity: nil, th: Thresholds{LowStockUnits: 10}, want: StatusHealthy},
		{name: "healthy with slow sales", stock: 100, velocity: dec("1"), th: Thresholds{LowStockUnits: 10}, want: StatusHealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.stock, tc.velocity, tc.th)
			if got.Status != tc.want {
				t.Fatalf("状态不符: got %s, want %s", got.Status, tc.want)
			}
		})
	}
}

func TestEvaluateStockoutDays(t *testing.T) {
	got := Evaluate(0, dec("4"), Thresholds{LowStockUnits: 10})
	if got.StockoutDays == nil || !got.StockoutDays.IsZero() {
		t.Fatalf("空库存应返回 0 天: %v", got.StockoutDays)
	}

	got = Evaluate(8, dec("0"), Thresholds{LowStockUnits: 10})
	if got.StockoutDays != nil {
		t.Fatalf("零流速不应估算天数: %v", got.StockoutDays)
	}
	if got.Status != StatusLow {
		t.Fatalf("库存 8 低于阈值 10 应为 Low: %s", got.Status)
	}

	got = Evaluate(100, dec("4"), Thresholds{LowStockUnits: 10})
	if got.StockoutDays == nil {
		t.Fatal("正流速应估算天数")
	}
	if want := decimal.NewFromInt(25); !got.StockoutDays.Equal(want) {
		t.Fatalf("天数应为 25: %s", got.StockoutDays)
	}
}

func TestCriticalUnitsDerivation(t *testing.T) {
	cases := []struct {
		low  int64
		want int64
	}{
		{low: 10, want: 3},
		{low: 20, want: 5},
		{low: 100, want: 5},
		{low: 3, want: 0},
	}

	for _, tc := range cases {
		got := Thresholds{LowStockUnits: tc.low}.criticalUnits()
		if got != tc.want {
			t.Fatalf("low=%d: derived critical units got %d, want %d", tc.low, got, tc.want)
		}
	}
}
