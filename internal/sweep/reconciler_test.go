package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muaviaUsmani/cadence/internal/metrics"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

// mockStore returns a scripted due list
type mockStore struct {
	due    []*schedule.Schedule
	err    error
	cutoff time.Time
}

func (m *mockStore) Due(_ context.Context, now time.Time, _ int64) ([]*schedule.Schedule, error) {
	m.cutoff = now
	return m.due, m.err
}

// mockRunner records run calls
type mockRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (m *mockRunner) Run(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, scheduleID)
	return m.err
}

func dueSchedule(id string) *schedule.Schedule {
	past := time.Now().Add(-10 * time.Minute)
	return &schedule.Schedule{ID: id, Active: true, NextRunAt: &past}
}

func TestTick_RecoversOverdueSchedules(t *testing.T) {
	client, _ := setupTestRedis(t)
	metrics.Global().Reset()

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1"), dueSchedule("s2")}}
	runner := &mockRunner{}

	r := NewReconciler(store, runner, client, time.Minute)
	r.Tick(context.Background())

	if len(runner.runs) != 2 {
		t.Fatalf("Run calls = %d, want 2", len(runner.runs))
	}
	if runner.runs[0] != "s1" || runner.runs[1] != "s2" {
		t.Errorf("Run order = %v, want [s1 s2]", runner.runs)
	}

	if got := metrics.Global().Snapshot().SweepRecovered; got != 2 {
		t.Errorf("SweepRecovered = %d, want 2", got)
	}
}

func TestTick_GraceShiftsCutoff(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := &mockStore{}
	r := NewReconciler(store, &mockRunner{}, client, time.Minute)
	r.SetGrace(5 * time.Minute)

	now := time.Date(2025, 8, 8, 1, 0, 0, 0, time.UTC)
	r.SetNow(func() time.Time { return now })

	r.Tick(context.Background())

	want := now.Add(-5 * time.Minute)
	if !store.cutoff.Equal(want) {
		t.Errorf("Due cutoff = %v, want %v", store.cutoff, want)
	}
}

func TestTick_SkipsLockedSchedule(t *testing.T) {
	client, _ := setupTestRedis(t)
	metrics.Global().Reset()

	// Hold the lock for s1 as if another instance were mid-recovery
	held, err := AcquireLock(context.Background(), client, "cadence:sweep_lock:s1", time.Minute)
	if err != nil || held == nil {
		t.Fatalf("Failed to pre-acquire lock: %v", err)
	}

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1"), dueSchedule("s2")}}
	runner := &mockRunner{}

	r := NewReconciler(store, runner, client, time.Minute)
	r.Tick(context.Background())

	if len(runner.runs) != 1 || runner.runs[0] != "s2" {
		t.Errorf("Run calls = %v, want [s2]", runner.runs)
	}
}

func TestTick_ReleasesLockAfterRun(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1")}}
	r := NewReconciler(store, &mockRunner{}, client, time.Minute)
	r.Tick(context.Background())

	// The lock must be free for the next pass
	lock, err := AcquireLock(context.Background(), client, "cadence:sweep_lock:s1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after tick failed: %v", err)
	}
	if lock == nil {
		t.Error("Sweep lock still held after recovery")
	}
}

func TestTick_RunFailureNotCountedAsRecovered(t *testing.T) {
	client, _ := setupTestRedis(t)
	metrics.Global().Reset()

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1")}}
	runner := &mockRunner{err: errors.New("generation failed")}

	r := NewReconciler(store, runner, client, time.Minute)
	r.Tick(context.Background())

	if got := metrics.Global().Snapshot().SweepRecovered; got != 0 {
		t.Errorf("SweepRecovered = %d, want 0 on failure", got)
	}
}

func TestTick_StoreErrorIsSwallowed(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := &mockStore{err: errors.New("redis down")}
	runner := &mockRunner{}

	r := NewReconciler(store, runner, client, time.Minute)
	r.Tick(context.Background())

	if len(runner.runs) != 0 {
		t.Errorf("No runs expected on store failure, got %v", runner.runs)
	}
}

// blockingRunner holds the run open until released
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(_ context.Context, _ string) error {
	close(b.started)
	<-b.release
	return nil
}

func TestRecover_ExtendsLockDuringLongRun(t *testing.T) {
	client, mr := setupTestRedis(t)

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1")}}
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}

	r := NewReconciler(store, runner, client, time.Minute)
	r.SetLockTTL(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Tick(context.Background())
		close(done)
	}()

	<-runner.started

	// Advance to just inside the original lease, then wait for at least one
	// extension tick (every lockTTL/2 of wall time), then advance past where
	// the original lease would have expired
	mr.FastForward(60 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	mr.FastForward(60 * time.Millisecond)

	exists, err := client.Exists(context.Background(), "cadence:sweep_lock:s1").Result()
	if err != nil {
		t.Fatalf("Failed to check lock key: %v", err)
	}
	if exists != 1 {
		t.Error("Lock expired mid-run; lease was not extended")
	}

	close(runner.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Tick did not finish after run was released")
	}

	// Released once the run completed
	lock, err := AcquireLock(context.Background(), client, "cadence:sweep_lock:s1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after tick failed: %v", err)
	}
	if lock == nil {
		t.Error("Sweep lock still held after recovery")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := &mockStore{due: []*schedule.Schedule{dueSchedule("s1")}}
	runner := &mockRunner{}

	r := NewReconciler(store, runner, client, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reconciler did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.runs) == 0 {
		t.Error("Expected at least one sweep pass before cancel")
	}
}
