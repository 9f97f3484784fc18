// Package email sends batch notifications as one plain text message over SMTP
// with mandatory STARTTLS
package email

import (
	"context"
	"strings"
	"time"

	"inquirysync/internal/adapters/notify"
	perr "inquirysync/internal/platform/errors"

	"github.com/wneessen/go-mail"
)

// Options configures the SMTP channel
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Channel is a notify.Channel over one SMTP relay
type Channel struct {
	client sender
	from   string
	to     []string
	fmt    notify.Formatter
}

// New validates o and builds the SMTP client; nothing is dialed yet
func New(o Options, f notify.Formatter) (*Channel, error) {
	to := recipients(o.To)
	switch {
	case o.Host == "":
		return nil, perr.WithField(perr.InvalidArgf("email: smtp host is required"), "EMAIL_SMTP_HOST")
	case o.From == "":
		return nil, perr.WithField(perr.InvalidArgf("email: sender is required"), "EMAIL_FROM")
	case len(to) == 0:
		return nil, perr.WithField(perr.InvalidArgf("email: no recipient"), "EMAIL_TO")
	}
	if o.Port == 0 {
		o.Port = 587
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(o.Timeout),
	}
	if o.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.User),
			mail.WithPassword(o.Password),
		)
	}
	c, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "email: smtp client")
	}
	return newChannel(c, o.From, to, f), nil
}

func newChannel(s sender, from string, to []string, f notify.Formatter) *Channel {
	return &Channel{client: s, from: from, to: to, fmt: f}
}

// Name implements notify.Channel
func (c *Channel) Name() string { return "email" }

// Notify mails the formatted batch to every recipient
func (c *Channel) Notify(ctx context.Context, b notify.Batch) error {
	return c.Text(ctx, c.fmt.Subject(b), c.fmt.Format(b))
}

// Text mails one plain text message
func (c *Channel) Text(ctx context.Context, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return perr.WithField(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "email: sender"), "EMAIL_FROM")
	}
	if err := m.To(c.to...); err != nil {
		return perr.WithField(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "email: recipients"), "EMAIL_TO")
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	if err := c.client.DialAndSendWithContext(ctx, m); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "email: send")
	}
	return nil
}

func recipients(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
