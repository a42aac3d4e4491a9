// Package notify sends fire-and-forget run summaries to the team chat.
// Delivery failures are logged and swallowed: a missing notification must
// never abort a reconciliation run.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/machinemap/machinemap/pkg/logging"
)

// Notifier posts run summaries to the team channel.
type Notifier interface {
	RunSummary(ctx context.Context, changed, added, retired int)
	Problems(ctx context.Context, count int)
}

// Slack is a Notifier backed by the Slack web API.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a Slack notifier posting to the given channel.
func NewSlack(token, channel string) *Slack {
	return &Slack{client: slack.New(token), channel: channel}
}

// RunSummary implements Notifier.
func (s *Slack) RunSummary(ctx context.Context, changed, added, retired int) {
	s.post(ctx, fmt.Sprintf(
		"Reconciliation finished: %d changes, %d new machines found and %d machines retired.",
		changed, added, retired))
}

// Problems implements Notifier.
func (s *Slack) Problems(ctx context.Context, count int) {
	if count == 0 {
		return
	}
	s.post(ctx, fmt.Sprintf("Found %d problems that require manual intervention.", count))
}

func (s *Slack) post(ctx context.Context, text string) {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false))
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to deliver chat notification")
	}
}

// Nop is a Notifier that does nothing, used when chat is not configured.
type Nop struct{}

// RunSummary implements Notifier.
func (Nop) RunSummary(context.Context, int, int, int) {}

// Problems implements Notifier.
func (Nop) Problems(context.Context, int) {}
