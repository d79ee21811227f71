package sink

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/usil/eventhos-relay/internal/config"
)

// SMTPMailer delivers notification mail over SMTP. It is only ever
// handed already-obfuscated content.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

// NewSMTPMailer builds a mailer from config, or returns nil when no
// SMTP host is configured (mail notification disabled).
func NewSMTPMailer(cfg *config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("SMTP_FROM and SMTP_TO are required when SMTP_HOST is set")
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

func (m *SMTPMailer) Send(subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
