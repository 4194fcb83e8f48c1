package mailgun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

// Settings contains the settings for the Mailgun API.
type Settings struct {
	// BaseURL defaults to https://{APIHost} when empty.
	BaseURL string
	APIHost string
	Domain  string
	APIKey  krypto.Secret
}

// Sender is an email sender that sends emails using the Mailgun API.
type Sender struct {
	client   *http.Client
	settings Settings
}

// NewSender creates a new sender.
func NewSender(client *http.Client, s Settings) *Sender {
	return &Sender{
		client:   client,
		settings: s,
	}
}

// Send sends an email using the Mailgun messages endpoint.
func (s *Sender) Send(ctx context.Context, from, recipient email.Address, subject, body string) error {
	fields := [][2]string{
		{"from", string(from)},
		{"to", string(recipient)},
		{"subject", subject},
		{"text", body},
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		err := w.WriteField(f[0], f[1])
		if err != nil {
			return fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	err := w.Close()
	if err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	base := s.settings.BaseURL
	if base == "" {
		base = "https://" + s.settings.APIHost
	}

	reqURL := fmt.Sprintf("%s/v3/%s/messages", base, s.settings.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth("api", string(s.settings.APIKey.SecretValue()))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request did not succeed %d: %s", resp.StatusCode, resBody)
	}

	return nil
}
