package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muaviaUsmani/cadence/internal/logger"
)

// HTTPClient implements Client against the dispatch service's JSON API
type HTTPClient struct {
	config Config
	client *http.Client
	log    logger.Logger
}

// NewHTTPClient creates a dispatch client. Credentials are checked at
// construction time; use Config.Configured before calling this in
// environments where the service may be absent.
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if !config.Configured() {
		return nil, fmt.Errorf("dispatch service not configured: base URL and token are required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: timeout},
		log:    logger.Default().WithComponent(logger.ComponentDispatch),
	}, nil
}

// publishRequest is the body for one-shot delayed registrations
type publishRequest struct {
	DestinationURL string          `json:"destination_url"`
	Body           json.RawMessage `json:"body"`
	DelayMS        int64           `json:"delay_ms"`
	Retries        int             `json:"retries"`
}

// scheduleRequest is the body for native-recurring registrations
type scheduleRequest struct {
	DestinationURL string          `json:"destination_url"`
	Cron           string          `json:"cron"`
	Body           json.RawMessage `json:"body"`
}

// messageResponse is the answer to both registration calls
type messageResponse struct {
	MessageID string `json:"message_id"`
}

// listResponse is the answer to List
type listResponse struct {
	MessageIDs []string `json:"message_ids"`
}

// PublishDelayed registers a one-shot delayed message
func (hc *HTTPClient) PublishDelayed(ctx context.Context, destination string, payload []byte, delay time.Duration, retries int) (string, error) {
	req := publishRequest{
		DestinationURL: destination,
		Body:           payload,
		DelayMS:        delay.Milliseconds(),
		Retries:        retries,
	}

	var resp messageResponse
	if err := hc.do(ctx, http.MethodPost, "/v2/messages", req, &resp); err != nil {
		return "", fmt.Errorf("failed to publish delayed message: %w", err)
	}

	hc.log.Debug("Delayed message published",
		"message_id", resp.MessageID,
		"delay_ms", delay.Milliseconds(),
		"retries", retries)
	return resp.MessageID, nil
}

// CreateRecurring registers a cron-driven message
func (hc *HTTPClient) CreateRecurring(ctx context.Context, destination, cronExpr string, payload []byte) (string, error) {
	req := scheduleRequest{
		DestinationURL: destination,
		Cron:           cronExpr,
		Body:           payload,
	}

	var resp messageResponse
	if err := hc.do(ctx, http.MethodPost, "/v2/schedules", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create recurring message: %w", err)
	}

	hc.log.Debug("Recurring message created",
		"message_id", resp.MessageID,
		"cron", cronExpr)
	return resp.MessageID, nil
}

// Cancel requests removal of a registered message. A 404 answer is reported
// as CancelNotFound with no error; transport and server failures are
// CancelUnknown with the underlying error.
func (hc *HTTPClient) Cancel(ctx context.Context, id string) (CancelOutcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, hc.url("/v2/messages/"+id), nil)
	if err != nil {
		return CancelUnknown, fmt.Errorf("failed to build cancel request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+hc.config.Token)

	httpResp, err := hc.client.Do(httpReq)
	if err != nil {
		return CancelUnknown, fmt.Errorf("cancel request failed: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return CancelNotFound, nil
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		return Cancelled, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return CancelUnknown, &APIError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// List returns the ids of all live messages
func (hc *HTTPClient) List(ctx context.Context) ([]string, error) {
	var resp listResponse
	if err := hc.do(ctx, http.MethodGet, "/v2/messages", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return resp.MessageIDs, nil
}

// do performs one JSON request/response round trip
func (hc *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, hc.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+hc.config.Token)
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := hc.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return &APIError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// url joins the base URL with an API path
func (hc *HTTPClient) url(path string) string {
	return strings.TrimRight(hc.config.BaseURL, "/") + path
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
