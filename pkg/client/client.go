// Package client provides a Go API for the scheduling service. It talks to
// the HTTP server exposed by cmd/server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muaviaUsmani/cadence/internal/metrics"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

// Client is a thin HTTP client for the scheduling API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ScheduleRequest carries the user-editable schedule fields. Prompt must be
// a prompt envelope, e.g. {"kind":"template","topic":"..."} or
// {"kind":"custom","text":"..."}.
type ScheduleRequest struct {
	Frequency string          `json:"frequency"`
	TimeOfDay string          `json:"time_of_day"`
	Timezone  string          `json:"timezone,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Prompt    json.RawMessage `json:"prompt"`
}

// ScheduleResult is a schedule plus its dispatch status
type ScheduleResult struct {
	Schedule   *schedule.Schedule `json:"schedule"`
	Dispatched bool               `json:"dispatched"`
}

// APIError is a non-2xx response from the service
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Message)
}

// CreateSchedule creates a new schedule
func (c *Client) CreateSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	var out ScheduleResult
	if err := c.do(ctx, http.MethodPost, "/schedules", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSchedule retrieves a schedule by id
func (c *Client) GetSchedule(ctx context.Context, id string) (*schedule.Schedule, error) {
	var out schedule.Schedule
	if err := c.do(ctx, http.MethodGet, "/schedules/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSchedule replaces a schedule's user-editable fields
func (c *Client) UpdateSchedule(ctx context.Context, id string, req ScheduleRequest) (*ScheduleResult, error) {
	var out ScheduleResult
	if err := c.do(ctx, http.MethodPut, "/schedules/"+id, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSchedule removes a schedule and cancels its external job
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/schedules/"+id, nil, nil)
}

// DeactivateSchedule stops a schedule without deleting it
func (c *Client) DeactivateSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/schedules/"+id+"/deactivate", nil, nil)
}

// RecentPosts returns the newest generated posts for a schedule
func (c *Client) RecentPosts(ctx context.Context, id string) ([]*schedule.Post, error) {
	var out []*schedule.Post
	if err := c.do(ctx, http.MethodGet, "/schedules/"+id+"/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerRun runs a schedule immediately, as if its dispatch job had fired
func (c *Client) TriggerRun(ctx context.Context, id string) error {
	body := map[string]string{"jobId": id}
	return c.do(ctx, http.MethodPost, "/hooks/run", body, nil)
}

// Metrics returns the service's current counters
func (c *Client) Metrics(ctx context.Context) (*metrics.Metrics, error) {
	var out metrics.Metrics
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(respBody))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
