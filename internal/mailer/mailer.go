// Package mailer delivers outbound email. SMTP delivers through gomail; Log
// writes the message to the structured log and is used when no SMTP host is
// configured.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/tbourn/go-tutor-backend/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// New picks the SMTP mailer when a host is configured, else the log mailer.
func New(cfg config.MailConfig) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return Log{}
	}
	return NewSMTP(cfg)
}

// dialer is the subset of *gomail.Dialer used by SMTP.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends through an SMTP relay.
type SMTP struct {
	dialer dialer
	from   string
}

// NewSMTP builds an SMTP mailer from cfg.
func NewSMTP(cfg config.MailConfig) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send dials the relay and delivers m. The context is only checked before
// dialing; gomail has no cancellation hook.
func (s *SMTP) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.build(m)); err != nil {
		log.Error().Err(err).Str("to", m.To).Str("subject", m.Subject).Msg("mail delivery failed")
		return fmt.Errorf("send mail: %w", err)
	}
	log.Info().Str("to", m.To).Str("subject", m.Subject).Msg("mail sent")
	return nil
}

func (s *SMTP) build(m Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", s.from)
	gm.SetHeader("To", m.To)
	if m.ReplyTo != "" {
		gm.SetHeader("Reply-To", m.ReplyTo)
	}
	gm.SetHeader("Subject", m.Subject)
	gm.SetBody("text/html", m.HTML)
	return gm
}

// Log records messages instead of sending them.
type Log struct{}

// Send logs m at info level and never fails.
func (Log) Send(_ context.Context, m Message) error {
	log.Info().
		Str("to", m.To).
		Str("reply_to", m.ReplyTo).
		Str("subject", m.Subject).
		Int("body_bytes", len(m.HTML)).
		Msg("mail not sent: no SMTP host configured")
	return nil
}

// ContactBody renders a contact-form submission as HTML. All fields are
// escaped.
func ContactBody(name, email, subject, message string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">`)
	b.WriteString("<h2>New contact message</h2>")
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>", html.EscapeString(email))
	fmt.Fprintf(&b, "<p><strong>Subject:</strong> %s</p>", html.EscapeString(subject))
	b.WriteString("<p><strong>Message:</strong></p>")
	fmt.Fprintf(&b, "<p>%s</p>", strings.ReplaceAll(html.EscapeString(message), "\n", "<br>"))
	b.WriteString("</div>")
	return b.String()
}
