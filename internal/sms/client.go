// Package sms sends text messages through the shop's HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tireshop_backend/platform/config"
	"tireshop_backend/platform/phone"
)

// Client posts messages to a JSON SMS gateway. When no gateway URL is
// configured every send is a no-op.
type Client struct {
	httpClient *http.Client
	gatewayURL string
	apiKey     string
	from       string
}

// New creates an SMS client from configuration.
func New(cfg config.SMSConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		gatewayURL: cfg.GetSMSGatewayURL(),
		apiKey:     cfg.GetSMSGatewayKey(),
		from:       cfg.GetSMSFromNumber(),
	}
}

// Enabled reports whether a gateway is configured.
func (c *Client) Enabled() bool {
	return c.gatewayURL != ""
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers one message. The recipient number is normalized to E.164
// before it reaches the gateway.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		From: c.from,
		To:   phone.NormalizeE164(to),
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
