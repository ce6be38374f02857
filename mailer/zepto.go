package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phillip/event-manager-go/config"
)

const defaultZeptoURL = "https://api.zeptomail.com/v1.1/email"

// email request payload for ZeptoMail API
type zeptoRequest struct {
	From     zeptoAddress     `json:"from"`
	To       []zeptoRecipient `json:"to"`
	Subject  string           `json:"subject"`
	HtmlBody string           `json:"htmlbody"`
	TextBody string           `json:"textbody,omitempty"`
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type zeptoRecipient struct {
	Email zeptoAddress `json:"email_address"`
}

// Zepto sends mail through the ZeptoMail HTTP API.
type Zepto struct {
	apiURL   string
	apiKey   string
	from     string
	fromName string
	client   *http.Client
}

func NewZepto(cfg config.EmailConfig) *Zepto {
	apiURL := cfg.ZeptoAPIURL
	if apiURL == "" {
		apiURL = defaultZeptoURL
	}
	return &Zepto{
		apiURL:   apiURL,
		apiKey:   cfg.ZeptoAPIKey,
		from:     cfg.From,
		fromName: cfg.FromName,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (z *Zepto) Send(ctx context.Context, msg Message) error {
	if err := z.send(ctx, msg); err != nil {
		return &DeliveryError{Transport: "zeptomail", To: msg.To, Err: err}
	}
	return nil
}

func (z *Zepto) send(ctx context.Context, msg Message) error {
	payload := zeptoRequest{
		From:     zeptoAddress{Address: z.from, Name: z.fromName},
		To:       []zeptoRecipient{{Email: zeptoAddress{Address: msg.To}}},
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
		TextBody: msg.Text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", z.apiKey)

	resp, err := z.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}
	return nil
}
