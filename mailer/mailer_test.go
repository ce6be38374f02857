package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[msg.To]; err != nil {
		return &DeliveryError{Transport: "test", To: msg.To, Err: err}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderCreated(t *testing.T) {
	html, err := newRenderer(t).Render(KindCreated, "Ana", "Launch <Party>", "https://example.com/api/events/1")
	require.NoError(t, err)

	assert.Contains(t, html, "Event created!")
	assert.Contains(t, html, "<strong>Ana</strong>")
	assert.Contains(t, html, "Launch &lt;Party&gt;")
	assert.Contains(t, html, `href="https://example.com/api/events/1"`)
}

func TestRenderUpdated(t *testing.T) {
	html, err := newRenderer(t).Render(KindUpdated, "Ana", "Launch", "http://localhost:8080/api/events/1")
	require.NoError(t, err)
	assert.Contains(t, html, "Event updated!")
	assert.Contains(t, html, "View changes")
}

func TestRenderDeletedHasNoLink(t *testing.T) {
	html, err := newRenderer(t).Render(KindDeleted, "Ana", "Launch", "")
	require.NoError(t, err)
	assert.Contains(t, html, "Event deleted")
	assert.NotContains(t, html, "href")
}

func TestRenderRejectsUnsafeLinks(t *testing.T) {
	r := newRenderer(t)
	for _, link := range []string{"", "javascript:alert(1)", "data:text/html,hi", "https://"} {
		_, err := r.Render(KindCreated, "Ana", "Launch", link)
		assert.Error(t, err, link)
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, `Your event "Launch" was created!`, Subject(KindCreated, "Launch"))
	assert.Equal(t, `Event updated: "Launch"`, Subject(KindUpdated, "Launch"))
	assert.Equal(t, "Event deleted!", Subject(KindDeleted, "Launch"))
}

func TestRecipients(t *testing.T) {
	p := models.Principal{UID: "u1", Email: "Owner@Example.com"}
	e := models.Event{Organizers: []models.Organizer{
		{Name: "A", Email: "owner@example.com"},
		{Name: "B", Email: "b@example.com"},
		{Name: "C"},
		{Name: "D", Email: "B@example.com"},
		{Name: "E", Email: "broken\r\nBcc: x@y.z"},
	}}

	assert.Equal(t, []string{"owner@example.com", "b@example.com"}, Recipients(p, e))
	assert.Empty(t, Recipients(models.Principal{UID: "u1"}, models.Event{}))
}

func testEvent() models.Event {
	return models.Event{
		ID:         primitive.NewObjectID(),
		Title:      "Launch",
		Organizers: []models.Organizer{{Name: "Bo", Email: "bo@example.com"}},
	}
}

func TestNotifierSendsOneMessagePerRecipient(t *testing.T) {
	m := &recordingMailer{}
	n := NewNotifier(m, newRenderer(t), "https://events.example.com/", zerolog.Nop())
	e := testEvent()

	err := n.Notify(context.Background(), KindCreated, models.Principal{UID: "u1", Email: "ana@example.com", DisplayName: "Ana"}, e)
	require.NoError(t, err)

	require.Len(t, m.sent, 2)
	assert.Equal(t, "ana@example.com", m.sent[0].To)
	assert.Equal(t, "bo@example.com", m.sent[1].To)
	assert.Equal(t, `Your event "Launch" was created!`, m.sent[0].Subject)
	assert.Contains(t, m.sent[0].HTML, "https://events.example.com/api/events/"+e.ID.Hex())
	assert.Contains(t, m.sent[0].Text, "Ana")
}

func TestNotifierJoinsFailures(t *testing.T) {
	m := &recordingMailer{fail: map[string]error{"bo@example.com": errors.New("mailbox full")}}
	n := NewNotifier(m, newRenderer(t), "http://localhost:8080", zerolog.Nop())

	err := n.Notify(context.Background(), KindDeleted, models.Principal{UID: "u1", Email: "ana@example.com"}, testEvent())
	require.Error(t, err)

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, "bo@example.com", delivery.To)
	assert.Len(t, m.sent, 1)
	assert.Equal(t, "Event deleted!", m.sent[0].Subject)
}

func TestNotifierWithoutRecipients(t *testing.T) {
	m := &recordingMailer{}
	n := NewNotifier(m, newRenderer(t), "http://localhost:8080", zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), KindUpdated, models.Principal{UID: "u1"}, models.Event{Title: "Launch"}))
	assert.Empty(t, m.sent)
}

func TestZeptoSend(t *testing.T) {
	var got zeptoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-enczapikey test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	z := NewZepto(config.EmailConfig{
		ZeptoAPIURL: srv.URL, ZeptoAPIKey: "Zoho-enczapikey test",
		From: "noreply@example.com", FromName: "Event Manager",
	})
	err := z.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", HTML: "<p>Hi</p>"})
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", got.From.Address)
	assert.Equal(t, "Event Manager", got.From.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "ana@example.com", got.To[0].Email.Address)
	assert.Equal(t, "<p>Hi</p>", got.HtmlBody)
}

func TestZeptoSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	z := NewZepto(config.EmailConfig{ZeptoAPIURL: srv.URL, ZeptoAPIKey: "k", From: "noreply@example.com"})
	err := z.Send(context.Background(), Message{To: "ana@example.com"})

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, "zeptomail", delivery.Transport)
	assert.Contains(t, err.Error(), "401")
}

func TestResendSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Event Manager <noreply@example.com>", body["from"])
		assert.Equal(t, []interface{}{"ana@example.com"}, body["to"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-1"})
	}))
	defer srv.Close()

	r := NewResend(config.EmailConfig{ResendAPIKey: "re_test", From: "noreply@example.com", FromName: "Event Manager"})
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	r.client.BaseURL = base

	require.NoError(t, r.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", HTML: "<p>Hi</p>"}))
}

func TestSMTPCompose(t *testing.T) {
	s, err := NewSMTP(config.EmailConfig{
		SMTPHost: "smtp.example.com", SMTPPort: 587,
		SMTPUsername: "user", SMTPPassword: "pass",
		From: "noreply@example.com", FromName: "Event Manager",
	})
	require.NoError(t, err)

	m, err := s.compose(Message{To: "ana@example.com", Subject: "Event deleted!", HTML: "<p>bye</p>", Text: "bye"})
	require.NoError(t, err)

	buf, err := m.MimeBuf()
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Event deleted!")
	assert.Contains(t, raw, "ana@example.com")
	assert.Contains(t, raw, "noreply@example.com")

	_, err = s.compose(Message{To: "not an address"})
	assert.Error(t, err)
}

func TestNewSelectsTransport(t *testing.T) {
	logger := zerolog.Nop()

	m, err := New(config.EmailConfig{Provider: "disabled"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), Message{To: "ana@example.com"}))

	m, err = New(config.EmailConfig{Provider: "zeptomail", ZeptoAPIKey: "k", From: "a@b.io"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Zepto{}, m)

	m, err = New(config.EmailConfig{Provider: "resend", ResendAPIKey: "k", From: "a@b.io"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Resend{}, m)

	_, err = New(config.EmailConfig{Provider: "smtp", From: "not valid"}, logger)
	assert.Error(t, err)

	_, err = New(config.EmailConfig{Provider: "pigeon"}, logger)
	assert.Error(t, err)
}
