package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DispatchResult aggregates the per-channel outcomes of one alert fan-out.
type DispatchResult struct {
	Results   []ChannelResult
	Attempted int
	Succeeded int
	Summary   string
	// Err is set when no channel succeeded, carrying the first channel's
	// failure as the primary cause.
	Err error
}

// Success reports whether at least one channel delivered the alert.
func (r DispatchResult) Success() bool {
	return r.Attempted > 0 && r.Succeeded > 0
}

// Dispatcher fans an alert out to every enabled channel and records each
// attempt in the append-only delivery log.
type Dispatcher struct {
	channels []Channel
	sink     DeliverySink
	logger   zerolog.Logger
}

// NewDispatcher wires the enabled channels and the delivery log sink.
func NewDispatcher(channels []Channel, sink DeliverySink, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		sink:     sink,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch delivers the notification through every channel sequentially.
// Every attempt is logged before the aggregate result is returned. With no
// channels enabled the result is an explanatory no-op, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, note Notification) DispatchResult {
	if len(d.channels) == 0 {
		return DispatchResult{Summary: "no notification channels enabled"}
	}

	result := DispatchResult{
		Results:   make([]ChannelResult, 0, len(d.channels)),
		Attempted: len(d.channels),
	}

	payload, err := json.Marshal(BuildWebhookPayload(note))
	if err != nil {
		payload = nil
	}

	for _, ch := range d.channels {
		d.recordPending(ctx, payload, ch)
		chResult := ch.Send(ctx, note)
		result.Results = append(result.Results, chResult)
		if chResult.Success {
			result.Succeeded++
		}

		d.record(ctx, payload, chResult)
	}

	switch {
	case result.Succeeded == 0:
		first := result.Results[0]
		result.Summary = fmt.Sprintf("all %d channels failed", result.Attempted)
		if first.Err != nil {
			result.Err = fmt.Errorf("dispatch failed on every channel: %w", first.Err)
		} else {
			result.Err = fmt.Errorf("dispatch failed on every channel")
		}
	case result.Succeeded == result.Attempted:
		result.Summary = fmt.Sprintf("sent via all %d channels", result.Attempted)
	default:
		result.Summary = fmt.Sprintf("sent via %d of %d channels", result.Succeeded, result.Attempted)
	}

	d.logger.Info().Str("product", note.ProductTitle).
		Str("type", string(note.AlertType)).
		Int("succeeded", result.Succeeded).
		Int("attempted", result.Attempted).
		Msg(result.Summary)

	return result
}

// recordPending opens the log lifecycle for one channel attempt. The
// terminal row appended by record supersedes it.
func (d *Dispatcher) recordPending(ctx context.Context, payload []byte, ch Channel) {
	if d.sink == nil {
		return
	}

	rec := DeliveryRecord{
		Channel:   ch.Name(),
		Recipient: ch.Recipient(),
		Payload:   payload,
		Status:    DeliveryPending,
		Metadata:  NewDeliveryMetadata(len(payload), false),
	}

	if err := d.sink.AppendDelivery(ctx, rec); err != nil {
		d.logger.Error().Err(err).Str("channel", ch.Name()).
			Msg("failed to append delivery log row")
	}
}

func (d *Dispatcher) record(ctx context.Context, payload []byte, chResult ChannelResult) {
	if d.sink == nil {
		return
	}

	status := DeliverySent
	errMsg := ""
	var sentAt *time.Time
	if chResult.Success {
		now := time.Now().UTC()
		sentAt = &now
	} else {
		status = DeliveryFailed
		if chResult.Status == 0 {
			// No HTTP status means the transport never got a response.
			status = DeliveryErrored
		}
		if chResult.Err != nil {
			errMsg = chResult.Err.Error()
		}
	}

	rec := DeliveryRecord{
		Channel:    chResult.Channel,
		Recipient:  chResult.Recipient,
		Payload:    payload,
		Status:     status,
		RetryCount: chResult.RetryCount,
		Error:      errMsg,
		SentAt:     sentAt,
		Metadata:   NewDeliveryMetadata(len(payload), false),
	}

	if err := d.sink.AppendDelivery(ctx, rec); err != nil {
		d.logger.Error().Err(err).Str("channel", chResult.Channel).
			Msg("failed to append delivery log row")
	}
}
