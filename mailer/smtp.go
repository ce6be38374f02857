package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/domodwyer/mailyak/v3"

	"github.com/phillip/event-manager-go/config"
)

// SMTP relays mail through an authenticated SMTP server. Port 465 uses
// implicit TLS, any other port relies on STARTTLS.
type SMTP struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	fromName string
	tls      bool
}

func NewSMTP(cfg config.EmailConfig) (*SMTP, error) {
	if err := ValidateAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender email in config: %w", err)
	}
	return &SMTP{
		addr:     cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort),
		host:     cfg.SMTPHost,
		auth:     smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost),
		from:     cfg.From,
		fromName: cfg.FromName,
		tls:      cfg.SMTPPort == 465,
	}, nil
}

func (s *SMTP) compose(msg Message) (*mailyak.MailYak, error) {
	if err := ValidateAddress(msg.To); err != nil {
		return nil, err
	}

	var m *mailyak.MailYak
	if s.tls {
		var err error
		m, err = mailyak.NewWithTLS(s.addr, s.auth, &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, err
		}
	} else {
		m = mailyak.New(s.addr, s.auth)
	}

	m.To(msg.To)
	m.From(s.from)
	m.FromName(s.fromName)
	m.Subject(msg.Subject)
	m.HTML().Set(msg.HTML)
	if msg.Text != "" {
		m.Plain().Set(msg.Text)
	}
	return m, nil
}

// Send hands the message to the relay. mailyak has no context support, so a
// cancelled ctx only stops the wait, not the dial.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return &DeliveryError{Transport: "smtp", To: msg.To, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- m.Send() }()

	select {
	case err := <-done:
		if err != nil {
			return &DeliveryError{Transport: "smtp", To: msg.To, Err: err}
		}
		return nil
	case <-ctx.Done():
		return &DeliveryError{Transport: "smtp", To: msg.To, Err: ctx.Err()}
	}
}
