package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/muaviaUsmani/cadence/internal/dispatch"
	"github.com/muaviaUsmani/cadence/internal/recurrence"
)

// mockDispatch records calls and returns scripted results
type mockDispatch struct {
	published     []publishedCall
	recurring     []recurringCall
	cancelled     []string
	publishErr    error
	recurringErr  error
	cancelOutcome dispatch.CancelOutcome
	cancelErr     error
	nextID        string
}

type publishedCall struct {
	destination string
	payload     []byte
	delay       time.Duration
	retries     int
}

type recurringCall struct {
	destination string
	cron        string
	payload     []byte
}

func (md *mockDispatch) PublishDelayed(ctx context.Context, destination string, payload []byte, delay time.Duration, retries int) (string, error) {
	if md.publishErr != nil {
		return "", md.publishErr
	}
	md.published = append(md.published, publishedCall{destination, payload, delay, retries})
	return md.nextID, nil
}

func (md *mockDispatch) CreateRecurring(ctx context.Context, destination, cronExpr string, payload []byte) (string, error) {
	if md.recurringErr != nil {
		return "", md.recurringErr
	}
	md.recurring = append(md.recurring, recurringCall{destination, cronExpr, payload})
	return md.nextID, nil
}

func (md *mockDispatch) Cancel(ctx context.Context, id string) (dispatch.CancelOutcome, error) {
	md.cancelled = append(md.cancelled, id)
	return md.cancelOutcome, md.cancelErr
}

func (md *mockDispatch) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

const webhook = "https://cadence.example.com/hooks/run"

func newTestManager(md *mockDispatch) *Manager {
	var client dispatch.Client
	if md != nil {
		client = md
	}
	m := NewManager(client, webhook)
	m.SetNow(func() time.Time {
		return time.Date(2025, 8, 8, 1, 0, 0, 0, time.UTC)
	})
	return m
}

func TestScheduleOnce(t *testing.T) {
	md := &mockDispatch{nextID: "ext-1", cancelOutcome: dispatch.Cancelled}
	m := newTestManager(md)

	fireAt := time.Date(2025, 8, 8, 5, 0, 0, 0, time.UTC)
	id := m.ScheduleOnce(context.Background(), "sched-a", fireAt, "")

	if id != "ext-1" {
		t.Errorf("External id mismatch: got %s", id)
	}
	if len(md.published) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(md.published))
	}

	call := md.published[0]
	if call.destination != webhook {
		t.Errorf("Destination mismatch: got %s", call.destination)
	}
	if call.delay != 4*time.Hour {
		t.Errorf("Delay mismatch: got %v", call.delay)
	}
	if call.retries != 3 {
		t.Errorf("Retries mismatch: got %d", call.retries)
	}

	var payload webhookPayload
	if err := json.Unmarshal(call.payload, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.JobID != "sched-a" {
		t.Errorf("Payload jobId mismatch: got %s", payload.JobID)
	}
}

func TestScheduleOnce_CancelsPreviousJob(t *testing.T) {
	md := &mockDispatch{nextID: "ext-2", cancelOutcome: dispatch.Cancelled}
	m := newTestManager(md)

	m.ScheduleOnce(context.Background(), "sched-a", time.Now().Add(time.Hour), "ext-1")

	if len(md.cancelled) != 1 || md.cancelled[0] != "ext-1" {
		t.Errorf("Expected previous job ext-1 cancelled, got %v", md.cancelled)
	}
}

func TestScheduleOnce_CancelFailureDoesNotBlockRegistration(t *testing.T) {
	md := &mockDispatch{
		nextID:        "ext-2",
		cancelOutcome: dispatch.CancelUnknown,
		cancelErr:     errors.New("dispatch timeout"),
	}
	m := newTestManager(md)

	id := m.ScheduleOnce(context.Background(), "sched-a", time.Now().Add(time.Hour), "ext-1")

	if id != "ext-2" {
		t.Errorf("Expected new registration despite cancel failure, got %q", id)
	}
	if len(md.published) != 1 {
		t.Errorf("Expected 1 publish, got %d", len(md.published))
	}
}

func TestScheduleOnce_PastFireTimeClampsDelayToZero(t *testing.T) {
	md := &mockDispatch{nextID: "ext-1"}
	m := newTestManager(md)

	fireAt := time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC) // before the mock clock
	m.ScheduleOnce(context.Background(), "sched-a", fireAt, "")

	if len(md.published) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(md.published))
	}
	if md.published[0].delay != 0 {
		t.Errorf("Expected zero delay for past fire time, got %v", md.published[0].delay)
	}
}

func TestScheduleOnce_DispatchFailureReturnsEmptyID(t *testing.T) {
	md := &mockDispatch{publishErr: errors.New("service unavailable")}
	m := newTestManager(md)

	id := m.ScheduleOnce(context.Background(), "sched-a", time.Now().Add(time.Hour), "")
	if id != "" {
		t.Errorf("Expected empty id on dispatch failure, got %q", id)
	}
}

func TestScheduleOnce_Unconfigured(t *testing.T) {
	m := newTestManager(nil)

	if m.Configured() {
		t.Error("Expected unconfigured manager")
	}
	if id := m.ScheduleOnce(context.Background(), "sched-a", time.Now().Add(time.Hour), ""); id != "" {
		t.Errorf("Expected no-op for unconfigured manager, got %q", id)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name    string
		outcome dispatch.CancelOutcome
		err     error
		want    bool
	}{
		{"confirmed", dispatch.Cancelled, nil, true},
		{"not found", dispatch.CancelNotFound, nil, false},
		{"unknown", dispatch.CancelUnknown, errors.New("timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := &mockDispatch{cancelOutcome: tt.outcome, cancelErr: tt.err}
			m := newTestManager(md)

			if got := m.Cancel(context.Background(), "ext-1"); got != tt.want {
				t.Errorf("Cancel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancel_EmptyIDOrUnconfigured(t *testing.T) {
	if newTestManager(nil).Cancel(context.Background(), "ext-1") {
		t.Error("Expected false for unconfigured manager")
	}

	md := &mockDispatch{cancelOutcome: dispatch.Cancelled}
	if newTestManager(md).Cancel(context.Background(), "") {
		t.Error("Expected false for empty external id")
	}
	if len(md.cancelled) != 0 {
		t.Error("Expected no cancel call for empty external id")
	}
}

func TestRegisterRecurring(t *testing.T) {
	md := &mockDispatch{nextID: "ext-r"}
	m := newTestManager(md)

	loc := time.FixedZone("UTC+9", 9*3600)
	id, err := m.RegisterRecurring(context.Background(), "sched-a", recurrence.FreqDaily, recurrence.TimeOfDay{Hour: 14}, loc)
	if err != nil {
		t.Fatalf("RegisterRecurring failed: %v", err)
	}

	if id != "ext-r" {
		t.Errorf("External id mismatch: got %s", id)
	}
	if len(md.recurring) != 1 {
		t.Fatalf("Expected 1 recurring registration, got %d", len(md.recurring))
	}
	if md.recurring[0].cron != "0 5 * * *" {
		t.Errorf("Cron mismatch: got %s", md.recurring[0].cron)
	}
}

func TestRegisterRecurring_UnsupportedFrequencyPropagates(t *testing.T) {
	md := &mockDispatch{nextID: "ext-r"}
	m := newTestManager(md)

	_, err := m.RegisterRecurring(context.Background(), "sched-a", "fortnightly", recurrence.TimeOfDay{}, time.UTC)
	if !errors.Is(err, recurrence.ErrUnsupportedFrequency) {
		t.Errorf("Expected ErrUnsupportedFrequency, got %v", err)
	}
	if len(md.recurring) != 0 {
		t.Error("Expected no registration for invalid frequency")
	}
}

func TestRegisterRecurring_DispatchFailureSwallowed(t *testing.T) {
	md := &mockDispatch{recurringErr: errors.New("service unavailable")}
	m := newTestManager(md)

	id, err := m.RegisterRecurring(context.Background(), "sched-a", recurrence.FreqHourly, recurrence.TimeOfDay{}, time.UTC)
	if err != nil {
		t.Errorf("Dispatch failure should be swallowed, got %v", err)
	}
	if id != "" {
		t.Errorf("Expected empty id, got %q", id)
	}
}
