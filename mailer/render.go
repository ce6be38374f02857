package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
)

// Kind identifies a lifecycle notification.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

//go:embed templates/*.html
var templateFS embed.FS

type templateData struct {
	Name  string
	Event string
	Link  string
}

// Renderer turns a notification kind into HTML using the embedded templates.
// html/template escapes the user supplied names.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render produces the HTML body. The deleted template has no link, so link is
// ignored for KindDeleted.
func (r *Renderer) Render(kind Kind, principalName, eventName, link string) (string, error) {
	if kind != KindDeleted {
		if err := validateLink(link); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	data := templateData{Name: principalName, Event: eventName, Link: link}
	if err := r.templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return "", fmt.Errorf("render %s email: %w", kind, err)
	}
	return buf.String(), nil
}

func Subject(kind Kind, eventName string) string {
	switch kind {
	case KindCreated:
		return fmt.Sprintf("Your event %q was created!", eventName)
	case KindUpdated:
		return fmt.Sprintf("Event updated: %q", eventName)
	default:
		return "Event deleted!"
	}
}

// PlainText is the text/plain alternative sent next to the HTML body.
func PlainText(kind Kind, principalName, eventName, link string) string {
	switch kind {
	case KindCreated:
		return fmt.Sprintf("Hi %s, your event %s was created successfully. View it at %s", principalName, eventName, link)
	case KindUpdated:
		return fmt.Sprintf("Hi %s, your event %s was updated. View the changes at %s", principalName, eventName, link)
	default:
		return fmt.Sprintf("Hi %s, your event %s was removed from the platform.", principalName, eventName)
	}
}

// validateLink only lets http(s) URLs into the href of a template.
func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid link scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid link: missing host")
	}
	return nil
}
