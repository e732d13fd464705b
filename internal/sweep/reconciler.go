// Package sweep periodically scans for schedules whose next run instant has
// passed without the dispatch webhook arriving, and runs them locally. It is
// the safety net for an unconfigured or unavailable dispatch service.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/metrics"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

const (
	// defaultLockTTL bounds how long a crashed instance can block a schedule
	defaultLockTTL = 60 * time.Second
	// defaultGrace is how long past NextRunAt the webhook gets before the
	// sweep takes over
	defaultGrace = 2 * time.Minute
	// defaultBatch caps the schedules recovered per tick
	defaultBatch = 100
)

// Runner executes one occurrence of a schedule
type Runner interface {
	Run(ctx context.Context, scheduleID string) error
}

// Store lists schedules whose run instant has passed
type Store interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]*schedule.Schedule, error)
}

// Reconciler scans for overdue schedules on an interval and delivers them
// through the runner, one distributed lock per schedule
type Reconciler struct {
	store     Store
	runner    Runner
	client    *redis.Client
	interval  time.Duration
	lockTTL   time.Duration
	grace     time.Duration
	batch     int64
	now       func() time.Time
	collector *metrics.Collector
	log       logger.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(store Store, runner Runner, client *redis.Client, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:     store,
		runner:    runner,
		client:    client,
		interval:  interval,
		lockTTL:   defaultLockTTL,
		grace:     defaultGrace,
		batch:     defaultBatch,
		now:       time.Now,
		collector: metrics.Global(),
		log:       logger.Default().WithComponent(logger.ComponentSweep),
	}
}

// SetLockTTL sets the distributed lock TTL (for testing or tuning)
func (r *Reconciler) SetLockTTL(ttl time.Duration) {
	r.lockTTL = ttl
}

// SetGrace sets how long past its run instant a schedule must be before the
// sweep recovers it
func (r *Reconciler) SetGrace(grace time.Duration) {
	r.grace = grace
}

// SetNow overrides the clock (for testing)
func (r *Reconciler) SetNow(now func() time.Time) {
	r.now = now
}

// Start begins the sweep loop and blocks until ctx is cancelled
func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info("Reconciliation sweep started",
		"interval", r.interval,
		"grace", r.grace)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Reconciliation sweep stopping")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one sweep pass: list overdue schedules and recover each
func (r *Reconciler) Tick(ctx context.Context) {
	cutoff := r.now().Add(-r.grace)

	due, err := r.store.Due(ctx, cutoff, r.batch)
	if err != nil {
		r.log.Error("Failed to list due schedules", "error", err)
		return
	}

	for _, sch := range due {
		r.recover(ctx, sch.ID)
	}
}

// recover runs a single overdue schedule under a per-schedule lock
func (r *Reconciler) recover(ctx context.Context, scheduleID string) {
	lockKey := fmt.Sprintf("cadence:sweep_lock:%s", scheduleID)

	lock, err := AcquireLock(ctx, r.client, lockKey, r.lockTTL)
	if err != nil {
		r.log.Error("Failed to acquire sweep lock",
			"schedule_id", scheduleID,
			"error", err)
		return
	}
	if lock == nil {
		// Another instance is already recovering this schedule
		r.log.Debug("Schedule already locked by another instance",
			"schedule_id", scheduleID)
		return
	}

	defer func() {
		if err := lock.Release(ctx); err != nil {
			r.log.Error("Failed to release sweep lock",
				"schedule_id", scheduleID,
				"error", err)
		}
	}()

	// Content generation can outlive the initial lease; keep extending it
	// until the run finishes
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(r.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := lock.Extend(ctx, r.lockTTL); err != nil {
					r.log.Warn("Failed to extend sweep lock",
						"schedule_id", scheduleID,
						"error", err)
					return
				}
			}
		}
	}()

	if err := r.runner.Run(ctx, scheduleID); err != nil {
		r.log.Error("Sweep recovery failed",
			"schedule_id", scheduleID,
			"error", err)
		return
	}

	r.collector.SweepRecovered()
	r.log.Info("Overdue schedule recovered", "schedule_id", scheduleID)
}
