package alerting

import "context"

// ChannelResult is the per-channel outcome collected by the dispatcher.
type ChannelResult struct {
	Channel    string
	Recipient  string
	Success    bool
	Status     int
	RetryCount int
	Err        error
}

// Channel delivers a notification over one transport (email, chat webhook,
// generic webhook, SMS).
type Channel interface {
	Name() string
	Recipient() string
	Send(ctx context.Context, note Notification) ChannelResult
}
