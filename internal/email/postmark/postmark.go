// Package postmark sends email through the Postmark HTTP API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

const tokenHeader = "X-Postmark-Server-Token"

type Settings struct {
	APIURL        *url.URL
	ServerToken   krypto.Secret
	MessageStream string
}

// Sender implements email.Sender.
type Sender struct {
	client   *http.Client
	settings Settings
}

func NewSender(client *http.Client, s Settings) *Sender {
	return &Sender{
		client:   client,
		settings: s,
	}
}

type message struct {
	From          string
	To            string
	Subject       string
	TextBody      string
	MessageStream string `json:",omitempty"`
}

// APIError is returned when Postmark rejects a message.
type APIError struct {
	StatusCode int
	ErrorCode  int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postmark: status %d, error code %d: %s", e.StatusCode, e.ErrorCode, e.Message)
}

func (s *Sender) Send(ctx context.Context, from, recipient email.Address, subject, body string) error {
	req, err := s.newRequest(ctx, message{
		From:          string(from),
		To:            string(recipient),
		Subject:       subject,
		TextBody:      body,
		MessageStream: s.settings.MessageStream,
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// A rejected message is a 422 with ErrorCode set; other statuses may not carry json.
	var apiErr APIError
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr)
	apiErr.StatusCode = resp.StatusCode

	switch {
	case decodeErr != nil && resp.StatusCode == http.StatusOK:
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	case apiErr.ErrorCode != 0 || resp.StatusCode != http.StatusOK:
		return &apiErr
	}

	return nil
}

func (s *Sender) newRequest(ctx context.Context, m message) (*http.Request, error) {
	var b bytes.Buffer
	err := json.NewEncoder(&b).Encode(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.settings.APIURL.String(), &b)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, string(s.settings.ServerToken.SecretValue()))
	return req, nil
}
