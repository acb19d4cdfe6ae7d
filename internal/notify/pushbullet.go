package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPushbulletEndpoint is the Pushbullet pushes API.
const DefaultPushbulletEndpoint = "https://api.pushbullet.com/v2/pushes"

// ErrMissingToken is returned when no Pushbullet access token is set.
var ErrMissingToken = errors.New("pushbullet access token is required")

// Pushbullet sends note pushes to every device on a Pushbullet account.
type Pushbullet struct {
	HTTPClient *http.Client
	Token      string
	Endpoint   string
}

// NewPushbullet creates a Pushbullet notifier with a bounded client timeout.
func NewPushbullet(token string, timeout time.Duration) (*Pushbullet, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Pushbullet{
		Token:      token,
		Endpoint:   DefaultPushbulletEndpoint,
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

type pushRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notify implements service.Notifier.
func (p *Pushbullet) Notify(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(pushRequest{Type: "note", Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("failed to encode push: %w", err)
	}

	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultPushbulletEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Access-Token", p.Token)
	req.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pushbullet request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pushbullet returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
