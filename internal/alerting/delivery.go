package alerting

import (
	"context"
	"encoding/json"
	"time"
)

// DeliveryStatus tracks the lifecycle of one logical delivery attempt.
// A Pending row is superseded by exactly one terminal row.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "Pending"
	DeliverySent      DeliveryStatus = "Sent"
	DeliveryFailed    DeliveryStatus = "Failed"
	DeliveryErrored   DeliveryStatus = "Error"
	DeliveryDelivered DeliveryStatus = "Delivered"
)

// DeliveryMetadata is the fixed, versioned shape of the ad hoc detail
// attached to delivery rows. Extra is the escape hatch for anything the
// schema does not name.
type DeliveryMetadata struct {
	SchemaVersion int            `json:"schema_version"`
	PayloadBytes  int            `json:"payload_bytes,omitempty"`
	Signed        bool           `json:"signed,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

const deliveryMetadataVersion = 1

// NewDeliveryMetadata stamps the current schema version.
func NewDeliveryMetadata(payloadBytes int, signed bool) DeliveryMetadata {
	return DeliveryMetadata{
		SchemaVersion: deliveryMetadataVersion,
		PayloadBytes:  payloadBytes,
		Signed:        signed,
	}
}

// DeliveryRecord is one row of the append-only delivery audit log.
type DeliveryRecord struct {
	Channel    string
	Recipient  string
	Payload    json.RawMessage
	Status     DeliveryStatus
	RetryCount int
	Error      string
	SentAt     *time.Time
	Metadata   DeliveryMetadata
}

// DeliverySink appends delivery outcomes to the audit log.
type DeliverySink interface {
	AppendDelivery(ctx context.Context, rec DeliveryRecord) error
}
