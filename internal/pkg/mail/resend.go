package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendSender delivers through the Resend HTTP API.
type ResendSender struct {
	APIKey  string
	From    string
	BaseURL string

	HTTPClient *http.Client
}

func NewResendSenderFromEnv() (*ResendSender, error) {
	key := strings.TrimSpace(env.GetEnv("RESEND_API_KEY", ""))
	if key == "" {
		return nil, errors.New("RESEND_API_KEY not set")
	}
	return &ResendSender{
		APIKey:  key,
		From:    DefaultFrom(),
		BaseURL: env.GetEnv("RESEND_API_BASE_URL", defaultResendBaseURL),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", ErrNoRecipient
	}
	from := msg.From
	if from == "" {
		from = s.From
	}
	b, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.BaseURL, "/")+"/emails", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("resend send failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	var out resendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil
	}
	return out.ID, nil
}
