package mailer

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/phillip/event-manager-go/metrics"
	"github.com/phillip/event-manager-go/models"
)

// Notifier sends the lifecycle email for an event to its owner and
// organizers.
type Notifier struct {
	mailer   Mailer
	renderer *Renderer
	baseURL  string
	logger   zerolog.Logger
}

func NewNotifier(m Mailer, r *Renderer, publicBaseURL string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		mailer:   m,
		renderer: r,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		logger:   logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) EventLink(id string) string {
	return n.baseURL + "/api/events/" + id
}

// Recipients returns the principal's email followed by every organizer email,
// lower-cased, deduplicated, with invalid addresses dropped.
func Recipients(p models.Principal, e models.Event) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || ValidateAddress(addr) != nil {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	add(p.Email)
	for _, o := range e.Organizers {
		add(o.Email)
	}
	return out
}

// Notify sends one message per recipient and joins the failures.
func (n *Notifier) Notify(ctx context.Context, kind Kind, p models.Principal, e models.Event) error {
	recipients := Recipients(p, e)
	if len(recipients) == 0 {
		n.logger.Debug().Str("kind", string(kind)).Str("event_id", e.ID.Hex()).Msg("no recipients, skipping email")
		return nil
	}

	link := ""
	if kind != KindDeleted {
		link = n.EventLink(e.ID.Hex())
	}
	html, err := n.renderer.Render(kind, p.Name(), e.Title, link)
	if err != nil {
		return err
	}
	msg := Message{
		Subject: Subject(kind, e.Title),
		HTML:    html,
		Text:    PlainText(kind, p.Name(), e.Title, link),
	}

	var errs []error
	for _, to := range recipients {
		msg.To = to
		err := n.mailer.Send(ctx, msg)
		metrics.EmailsTotal.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n.logger.Info().Str("kind", string(kind)).Str("to", to).Str("event_id", e.ID.Hex()).Msg("email sent")
	}
	return errors.Join(errs...)
}
