// Package dispatch wraps the external delayed-message service that fires
// webhooks at a future instant or on a cron expression. The service holds all
// timers; nothing in this process waits for a future run.
package dispatch

import (
	"context"
	"fmt"
	"time"
)

// CancelOutcome reports what a cancellation request established about the
// remote job, so callers can distinguish a confirmed cancel from a job that
// was already gone and from an inconclusive failure.
type CancelOutcome int

const (
	// CancelUnknown means the request failed before the service answered;
	// the job may or may not still be live
	CancelUnknown CancelOutcome = iota
	// Cancelled means the service confirmed the job was removed
	Cancelled
	// CancelNotFound means the service had no job under that id
	CancelNotFound
)

// String returns a human-readable outcome name
func (o CancelOutcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case CancelNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Client is the boundary contract for the dispatch service
type Client interface {
	// PublishDelayed registers a one-shot delayed message and returns its id
	PublishDelayed(ctx context.Context, destination string, payload []byte, delay time.Duration, retries int) (string, error)

	// CreateRecurring registers a persistent cron-driven message and returns its id
	CreateRecurring(ctx context.Context, destination, cronExpr string, payload []byte) (string, error)

	// Cancel requests removal of a registered message
	Cancel(ctx context.Context, id string) (CancelOutcome, error)

	// List returns the ids of all live messages
	List(ctx context.Context) ([]string, error)
}

// Config holds dispatch service connection settings. An explicit config
// injected at construction replaces any process-global client state.
type Config struct {
	// BaseURL is the dispatch service API root
	BaseURL string
	// Token is the bearer token; empty means the service is not configured
	Token string
	// Timeout bounds each outbound call
	Timeout time.Duration
}

// Configured reports whether the dispatch service has usable credentials.
// When false, scheduling operations are skipped (a mode switch, not an
// error) and the reconciliation sweep is the only delivery mechanism.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.Token != ""
}

// APIError is a non-2xx answer from the dispatch service
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("dispatch service returned %d: %s", e.StatusCode, e.Body)
}
