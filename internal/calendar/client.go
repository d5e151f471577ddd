// Package calendar syncs appointments to the shop's Google Calendar.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tireshop_backend/platform/config"
)

// Sync status values written back onto the appointment row.
const (
	SyncStatusPending = "pending"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

const baseURL = "https://www.googleapis.com/calendar/v3"

// slotDuration is how long a calendar block is reserved per appointment.
const slotDuration = 30 * time.Minute

// Event describes one appointment block on the calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
}

// Client talks to the Google Calendar v3 REST API with a bearer token.
type Client struct {
	httpClient  *http.Client
	calendarID  string
	accessToken string
	enabled     bool
}

// New creates a calendar client from configuration.
func New(cfg config.CalendarConfig) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		calendarID:  cfg.GetCalendarID(),
		accessToken: cfg.GetCalendarAccessToken(),
		enabled:     cfg.IsCalendarEnabled(),
	}
}

// Enabled reports whether calendar sync is configured.
func (c *Client) Enabled() bool { return c.enabled }

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventPayload struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventResponse struct {
	ID string `json:"id"`
}

func payloadFor(ev Event) eventPayload {
	return eventPayload{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       eventTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         eventTime{DateTime: ev.Start.Add(slotDuration).Format(time.RFC3339)},
	}
}

// CreateEvent inserts a calendar event and returns its provider id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", baseURL, url.PathEscape(c.calendarID))
	var resp eventResponse
	if err := c.do(ctx, http.MethodPost, endpoint, payloadFor(ev), &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateEvent moves an existing calendar event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	return c.do(ctx, http.MethodPatch, endpoint, payloadFor(ev), nil)
}

// DeleteEvent removes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("calendar payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("calendar api returned %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("calendar response: %w", err)
		}
	}
	return nil
}
