package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// SlackTools posts messages to a configured Slack channel on the model's
// behalf.
type SlackTools struct {
	client         *slack.Client
	defaultChannel string
}

// NewSlackTools creates the Slack capability provider. Returns nil when no
// bot token is configured, which disables the capability.
func NewSlackTools(botToken, defaultChannel string) *SlackTools {
	if botToken == "" {
		return nil
	}
	return &SlackTools{
		client:         slack.New(botToken),
		defaultChannel: defaultChannel,
	}
}

type slackMessageInput struct {
	Text    string `json:"text" jsonschema:"required" jsonschema_description:"Message text to post."`
	Channel string `json:"channel,omitempty" jsonschema_description:"Channel ID to post to. Defaults to the configured channel."`
}

// Register adds the send_slack_message capability.
func (s *SlackTools) Register(r *Registry) {
	Add(r, "send_slack_message", "Send a message to a Slack channel.", func(ctx context.Context, in slackMessageInput) (string, error) {
		return s.sendMessage(ctx, in)
	})
}

func (s *SlackTools) sendMessage(ctx context.Context, in slackMessageInput) (string, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", errors.New("message text cannot be empty")
	}

	channel := in.Channel
	if channel == "" {
		channel = s.defaultChannel
	}
	if channel == "" {
		return "", errors.New("no Slack channel configured")
	}

	_, ts, err := s.client.PostMessageContext(ctx, channel,
		slack.MsgOptionText(in.Text, false),
	)
	if err != nil {
		return "", fmt.Errorf("failed to post Slack message: %w", err)
	}
	return fmt.Sprintf("Message posted to %s (ts %s).", channel, ts), nil
}
