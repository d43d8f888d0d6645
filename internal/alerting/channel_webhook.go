package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// WebhookChannel adapts the generic signed transport to the channel interface.
type WebhookChannel struct {
	transport *WebhookTransport
	url       string
}

// NewWebhookChannel builds a channel around a fresh transport. The dispatcher
// owns the delivery log for channel sends, so the transport gets no sink.
func NewWebhookChannel(opts WebhookOptions, logger zerolog.Logger) *WebhookChannel {
	return &WebhookChannel{
		transport: NewWebhookTransport(opts, nil, logger),
		url:       opts.URL,
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Recipient() string { return c.url }

func (c *WebhookChannel) Send(ctx context.Context, note Notification) ChannelResult {
	result := ChannelResult{Channel: c.Name(), Recipient: c.url}

	sendResult := c.transport.Send(ctx, BuildWebhookPayload(note))
	result.Success = sendResult.Success
	result.Status = sendResult.StatusCode
	result.RetryCount = sendResult.RetryCount
	result.Err = sendResult.Err

	return result
}

var _ Channel = (*WebhookChannel)(nil)
