// Package notify dispatches rendered Policy Engine output to its target
// destination. Each destination's Sender is independent: a failure on one
// must never block or fail another (spec.md §4.4).
package notify

import (
	"context"
	"fmt"

	"github.com/tierwatch/tierwatch/internal/config"
	"github.com/tierwatch/tierwatch/internal/policy"
)

// Sender delivers one rendered message to a single destination. Send must
// return one of the sentinel NotifyError kinds on failure so callers can
// log consistently.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// Set is an immutable collection of Senders, one per configured
// destination, built once from the active config at startup.
type Set struct {
	senders map[config.DestinationId]Sender
}

// NewSet builds a Set from cfg. A destination with empty credentials still
// gets a Sender — it fails every Send with ErrMisconfigured rather than
// rejecting configuration at load time, per spec.md §3's invariant that
// missing credentials are a runtime send-time error.
func NewSet(cfg config.NotificationsConfig) *Set {
	return &Set{
		senders: map[config.DestinationId]Sender{
			config.DestinationSlack:    NewSlackSender(cfg.Slack),
			config.DestinationDiscord:  NewDiscordSender(cfg.Discord),
			config.DestinationTelegram: NewTelegramSender(cfg.Telegram),
			config.DestinationTwitter:  NewTwitterSender(cfg.Twitter),
		},
	}
}

// Result is the outcome of one dispatched Notification, for logging and
// telemetry at the call site.
type Result struct {
	Notification policy.Notification
	Err          error
}

// Dispatch sends every notification concurrently — one goroutine per
// notification — and returns once all have completed. Per spec.md §5,
// completion order across notifications from a single event is
// unspecified; Dispatch blocks until every send (success or failure) has
// been observed, so the caller can log failures without a retry queue.
func (s *Set) Dispatch(ctx context.Context, notifications []policy.Notification) []Result {
	results := make([]Result, len(notifications))

	done := make(chan struct{}, len(notifications))
	for i, n := range notifications {
		go func(i int, n policy.Notification) {
			defer func() { done <- struct{}{} }()
			results[i] = Result{Notification: n, Err: s.send(ctx, n)}
		}(i, n)
	}

	for range notifications {
		<-done
	}

	return results
}

func (s *Set) send(ctx context.Context, n policy.Notification) error {
	sender, ok := s.senders[n.Destination]
	if !ok {
		return fmt.Errorf("%w: no sender registered for destination %q", ErrMisconfigured, n.Destination)
	}

	return sender.Send(ctx, n.Message)
}
