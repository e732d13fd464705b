// Package lifecycle manages the external-job handle of a schedule: create,
// update-by-cancel-and-recreate, and cancel against the dispatch service.
//
// Dispatch call failures are logged and swallowed here; a schedule update
// proceeds even when the service is unreachable, leaving re-delivery to the
// reconciliation sweep.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/muaviaUsmani/cadence/internal/dispatch"
	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/recurrence"
)

// defaultRetries is the dispatch-side retry count for one-shot deliveries
const defaultRetries = 3

// webhookPayload is the JSON body the dispatch service posts back to us
type webhookPayload struct {
	JobID string `json:"jobId"`
}

// Manager owns the lifecycle of external dispatch jobs. A nil client puts
// the manager in unconfigured mode: every operation becomes a no-op and the
// caller falls back to the sweep.
type Manager struct {
	client     dispatch.Client
	webhookURL string
	retries    int
	now        func() time.Time
	log        logger.Logger
}

// NewManager creates a lifecycle manager. client may be nil when the
// dispatch service is not configured.
func NewManager(client dispatch.Client, webhookURL string) *Manager {
	return &Manager{
		client:     client,
		webhookURL: webhookURL,
		retries:    defaultRetries,
		now:        time.Now,
		log:        logger.Default().WithComponent(logger.ComponentLifecycle),
	}
}

// SetNow overrides the clock (for testing)
func (m *Manager) SetNow(now func() time.Time) {
	m.now = now
}

// Configured reports whether the dispatch service is available. When false,
// callers must treat scheduling as skipped, not failed.
func (m *Manager) Configured() bool {
	return m.client != nil
}

// ScheduleOnce registers a one-shot delayed job firing at fireAt. When
// prevExternalID is non-empty it is cancelled first, best-effort: a failed
// cancellation never blocks the new registration.
//
// Returns the new external job id, or "" when the manager is unconfigured or
// the registration failed (logged, not propagated).
func (m *Manager) ScheduleOnce(ctx context.Context, scheduleID string, fireAt time.Time, prevExternalID string) string {
	if m.client == nil {
		m.log.Debug("Dispatch not configured, skipping one-shot registration", "schedule_id", scheduleID)
		return ""
	}

	if prevExternalID != "" {
		m.Cancel(ctx, prevExternalID)
	}

	payload, err := json.Marshal(webhookPayload{JobID: scheduleID})
	if err != nil {
		m.log.Error("Failed to marshal webhook payload", "schedule_id", scheduleID, "error", err)
		return ""
	}

	delay := fireAt.Sub(m.now())
	if delay < 0 {
		delay = 0
	}

	id, err := m.client.PublishDelayed(ctx, m.webhookURL, payload, delay, m.retries)
	if err != nil {
		m.log.Error("Failed to register one-shot job",
			"schedule_id", scheduleID,
			"fire_at", fireAt.Format(time.RFC3339),
			"error", err)
		return ""
	}

	m.log.Info("One-shot job registered",
		"schedule_id", scheduleID,
		"external_id", id,
		"fire_at", fireAt.Format(time.RFC3339))
	return id
}

// Cancel requests cancellation of an external job. Returns whether the
// service confirmed the cancellation; false covers not-found and every
// failure mode alike, and callers proceed assuming no live job remains.
func (m *Manager) Cancel(ctx context.Context, externalID string) bool {
	if m.client == nil || externalID == "" {
		return false
	}

	outcome, err := m.client.Cancel(ctx, externalID)
	if err != nil {
		m.log.Warn("Failed to cancel external job",
			"external_id", externalID,
			"outcome", outcome.String(),
			"error", err)
		return false
	}

	if outcome != dispatch.Cancelled {
		m.log.Debug("External job not cancelled", "external_id", externalID, "outcome", outcome.String())
	}
	return outcome == dispatch.Cancelled
}

// RegisterRecurring derives a cron expression for the schedule and registers
// a native-recurring job with the dispatch service.
//
// The returned error is only ever a derivation failure (an unsupported
// frequency is a validation bug upstream); dispatch failures are logged and
// reported as an empty id.
func (m *Manager) RegisterRecurring(ctx context.Context, scheduleID string, freq recurrence.Frequency, tod recurrence.TimeOfDay, loc *time.Location) (string, error) {
	// The expression bakes in the zone's UTC offset at registration time; in
	// a DST zone the job fires one wall-clock hour off after a transition
	// until the schedule is updated and re-registered
	cronExpr, err := recurrence.CronExpression(freq, tod, loc)
	if err != nil {
		return "", err
	}

	if m.client == nil {
		m.log.Debug("Dispatch not configured, skipping recurring registration", "schedule_id", scheduleID)
		return "", nil
	}

	payload, marshalErr := json.Marshal(webhookPayload{JobID: scheduleID})
	if marshalErr != nil {
		m.log.Error("Failed to marshal webhook payload", "schedule_id", scheduleID, "error", marshalErr)
		return "", nil
	}

	id, dispatchErr := m.client.CreateRecurring(ctx, m.webhookURL, cronExpr, payload)
	if dispatchErr != nil {
		m.log.Error("Failed to register recurring job",
			"schedule_id", scheduleID,
			"cron", cronExpr,
			"error", dispatchErr)
		return "", nil
	}

	m.log.Info("Recurring job registered",
		"schedule_id", scheduleID,
		"external_id", id,
		"cron", cronExpr)
	return id, nil
}
