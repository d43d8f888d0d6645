package alerting

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/velocity"
)

func TestTitleKnownAndFallback(t *testing.T) {
	if got := Title(TypeImminentStockout, "Blue Widget"); got != "Stockout Alert: Blue Widget" {
		t.Fatalf("标题不符: %q", got)
	}
	if got := Title(TypeAIPredictionAlert, "Blue Widget"); got != "Inventory Alert: Blue Widget" {
		t.Fatalf("未知类型应使用兜底标题: %q", got)
	}
}

func TestMessageAppendsRunwayWhenClose(t *testing.T) {
	three := 3
	thirty := 30

	got := Message(TypeImminentStockout, "Blue Widget", decimal.NewFromInt(4), velocity.TrendIncreasing, &three)
	if !strings.Contains(got, "sell out in 3 days") {
		t.Fatalf("临近断货应附带天数: %q", got)
	}

	got = Message(TypeFastSellingWarning, "Blue Widget", decimal.NewFromInt(4), velocity.TrendIncreasing, &thirty)
	if strings.Contains(got, "sell out") {
		t.Fatalf("30 天不算临近断货: %q", got)
	}
}

func TestSuggestedAction(t *testing.T) {
	two, five := 2, 5

	if got := SuggestedAction(&two, velocity.TrendStable); got != "Urgent: reorder stock now" {
		t.Fatalf("2 天应为紧急补货: %q", got)
	}
	if got := SuggestedAction(&five, velocity.TrendStable); got != "Expedite your next reorder" {
		t.Fatalf("5 天应为加急补货: %q", got)
	}
	if got := SuggestedAction(nil, velocity.TrendAccelerating); got != "Monitor closely and plan a reorder" {
		t.Fatalf("加速趋势应为密切关注: %q", got)
	}
	if got := SuggestedAction(nil, velocity.TrendStable); got != "Review inventory levels" {
		t.Fatalf("默认动作不符: %q", got)
	}
}

func TestBuildWebhookPayloadShape(t *testing.T) {
	body, err := BuildWebhookPayload(testNotification()).MarshalBody()
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatal(err)
	}

	if parsed["event"] != "inventory.alert.created" {
		t.Fatalf("event 不符: %v", parsed["event"])
	}

	shop, ok := parsed["shop"].(map[string]any)
	if !ok || shop["domain"] != "demo.example.com" {
		t.Fatalf("shop 块不符: %v", parsed["shop"])
	}

	alert, ok := parsed["alert"].(map[string]any)
	if !ok {
		t.Fatalf("alert 块缺失: %v", parsed)
	}
	if alert["severity"] != "critical" {
		t.Fatalf("severity 应为小写: %v", alert["severity"])
	}
	if alert["type"] != string(TypeImminentStockout) {
		t.Fatalf("type 不符: %v", alert["type"])
	}

	if parsed["timestamp"] != "2026-03-10T12:00:00Z" {
		t.Fatalf("timestamp 应为 RFC3339 UTC: %v", parsed["timestamp"])
	}
}

func TestBuildWebhookPayloadWithoutAlert(t *testing.T) {
	note := testNotification()
	note.AlertID = ""
	note.Event = "inventory.updated"

	body, err := BuildWebhookPayload(note).MarshalBody()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), `"alert"`) {
		t.Fatalf("无告警时不应包含 alert 块: %s", body)
	}
}
