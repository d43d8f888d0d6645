package alerting

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/velocity"
)

// Notification is the channel-independent alert context handed to the
// dispatcher. Channels render it into their own wire formats.
type Notification struct {
	Event        string
	ShopID       string
	ShopDomain   string
	ProductID    string
	ProductTitle string
	Quantity     int64
	Threshold    *int64

	AlertID   string
	AlertType AlertType
	Severity  Severity
	Title     string
	Message   string

	DailyVelocity     decimal.Decimal
	Trend             velocity.Trend
	DaysUntilStockout *int

	Timestamp time.Time
	Metadata  map[string]any
}

// WebhookPayload is the JSON body of every outbound webhook delivery.
type WebhookPayload struct {
	Event     string            `json:"event"`
	Shop      PayloadShop       `json:"shop"`
	Product   PayloadProduct    `json:"product"`
	Alert     *PayloadAlert     `json:"alert,omitempty"`
	Inventory *PayloadInventory `json:"inventory,omitempty"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

type PayloadShop struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

type PayloadProduct struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CurrentQuantity int64  `json:"currentQuantity"`
	Threshold       *int64 `json:"threshold,omitempty"`
}

type PayloadAlert struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type PayloadInventory struct {
	PreviousQuantity int64  `json:"previousQuantity"`
	NewQuantity      int64  `json:"newQuantity"`
	ChangeReason     string `json:"changeReason"`
}

// MarshalBody serialises the payload once; signing must cover these exact bytes.
func (p WebhookPayload) MarshalBody() ([]byte, error) {
	return json.Marshal(p)
}

// BuildWebhookPayload renders a notification into the outbound wire shape.
func BuildWebhookPayload(note Notification) WebhookPayload {
	payload := WebhookPayload{
		Event: note.Event,
		Shop: PayloadShop{
			ID:     note.ShopID,
			Domain: note.ShopDomain,
		},
		Product: PayloadProduct{
			ID:              note.ProductID,
			Title:           note.ProductTitle,
			CurrentQuantity: note.Quantity,
			Threshold:       note.Threshold,
		},
		Timestamp: note.Timestamp.UTC().Format(time.RFC3339),
		Metadata:  note.Metadata,
	}

	if note.AlertID != "" {
		payload.Alert = &PayloadAlert{
			ID:       note.AlertID,
			Type:     string(note.AlertType),
			Severity: note.Severity.Wire(),
			Message:  note.Message,
		}
	}

	return payload
}
