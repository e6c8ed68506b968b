// Package alert posts operational failures (weekly report, background jobs)
// to a Slack channel.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

type Notifier interface {
	Error(ctx context.Context, message string) error
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type Slack struct {
	client  poster
	channel string
}

// New returns a Slack notifier, or a log-only notifier when token or channel
// is missing.
func New(token, channel string) Notifier {
	if token == "" || channel == "" {
		return LogOnly{}
	}
	return &Slack{client: slack.New(token), channel: channel}
}

func (s *Slack) Error(ctx context.Context, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(":rotating_light: "+message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

type LogOnly struct{}

func (LogOnly) Error(ctx context.Context, message string) error {
	slog.Error("alert", "message", message)
	return nil
}
