// Package slack posts batch notifications to a Slack incoming webhook
package slack

import (
	"context"
	"net/http"
	"time"

	"inquirysync/internal/adapters/notify"
	perr "inquirysync/internal/platform/errors"

	"github.com/slack-go/slack"
)

// Options configures the webhook channel
type Options struct {
	WebhookURL string
	Timeout    time.Duration
}

// Channel is a notify.Channel over one webhook
type Channel struct {
	url  string
	http *http.Client
	fmt  notify.Formatter
}

// New returns a Channel; an empty webhook URL is rejected
func New(o Options, f notify.Formatter) (*Channel, error) {
	if o.WebhookURL == "" {
		return nil, perr.WithField(perr.InvalidArgf("slack: webhook url is required"), "SLACK_WEBHOOK_URL")
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return &Channel{url: o.WebhookURL, http: &http.Client{Timeout: o.Timeout}, fmt: f}, nil
}

// Name implements notify.Channel
func (c *Channel) Name() string { return "slack" }

// Notify posts the formatted batch
func (c *Channel) Notify(ctx context.Context, b notify.Batch) error {
	return c.post(ctx, c.fmt.Format(b))
}

// Text posts subject and body as one message
func (c *Channel) Text(ctx context.Context, subject, body string) error {
	text := body
	if subject != "" && subject != body {
		text = "*" + subject + "*\n" + body
	}
	return c.post(ctx, text)
}

func (c *Channel) post(ctx context.Context, text string) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, c.url, c.http, &slack.WebhookMessage{Text: text})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "slack: post webhook")
	}
	return nil
}
