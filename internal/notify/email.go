package notify

import (
	"context"

	"gopkg.in/gomail.v2"

	"medtrack-backend/config"
)

// EmailDialer abstracts the SMTP send so tests can fake it.
type EmailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel delivers reminders over SMTP. Email is the default-enabled
// channel: a user without an explicit preference row still gets it, as long
// as the transport is configured and their address resolves.
type EmailChannel struct {
	cfg    config.EmailConfig
	dialer EmailDialer
}

// NewEmailChannel creates an email channel. With an empty SMTP host the
// channel stays registered but reports itself disabled.
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	ch := &EmailChannel{cfg: cfg}
	if cfg.Host != "" {
		ch.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return ch
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Enabled(r Recipient) bool {
	return c.dialer != nil && r.Prefs.EmailEnabled && r.Email != ""
}

func (c *EmailChannel) Send(_ context.Context, msg Message, r Recipient) error {
	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", r.Email)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)
	return c.dialer.DialAndSend(m)
}
