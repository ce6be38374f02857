// Package mailer renders and delivers the event lifecycle emails.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/phillip/event-manager-go/config"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a single message. Transport failures are returned as
// *DeliveryError.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type DeliveryError struct {
	Transport string
	To        string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s failed: %v", e.Transport, e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// New builds the transport selected in cfg.
func New(cfg config.EmailConfig, logger zerolog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTP(cfg)
	case "zeptomail":
		return NewZepto(cfg), nil
	case "resend":
		return NewResend(cfg), nil
	case "disabled", "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// ValidateAddress rejects malformed addresses and header injection attempts.
func ValidateAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	if strings.ContainsAny(parsed.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

// LogMailer is used when email is disabled. It only logs what would be sent.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "email").Logger()}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email service disabled, skipping message")
	return nil
}
