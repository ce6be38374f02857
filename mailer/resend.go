package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/phillip/event-manager-go/config"
)

type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(cfg config.EmailConfig) *Resend {
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &Resend{client: resend.NewClient(cfg.ResendAPIKey), from: from}
}

// Send does not retry on rate limits; the error says when the limit resets.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			err = fmt.Errorf("email rate limit exceeded (limit: %s, resets in: %s seconds): %w",
				rateLimitErr.Limit, rateLimitErr.Reset, err)
		}
		return &DeliveryError{Transport: "resend", To: msg.To, Err: err}
	}
	return nil
}
