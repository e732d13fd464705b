// Package autopost orchestrates schedule CRUD and the run cycle: generate
// content, persist the post, compute the next occurrence, and re-arm the
// external dispatch job.
package autopost

import (
	"context"
	"fmt"
	"time"

	"github.com/muaviaUsmani/cadence/internal/content"
	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/metrics"
	"github.com/muaviaUsmani/cadence/internal/recurrence"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

// Store is the persistence surface the service needs
type Store interface {
	Create(ctx context.Context, s *schedule.Schedule) error
	Get(ctx context.Context, id string) (*schedule.Schedule, error)
	Update(ctx context.Context, s *schedule.Schedule) error
	Delete(ctx context.Context, id string) error
	SetRun(ctx context.Context, id string, nextRunAt *time.Time, externalJobID string) error
	SavePost(ctx context.Context, p *schedule.Post) error
	RecentPosts(ctx context.Context, scheduleID string, n int64) ([]*schedule.Post, error)
}

// Lifecycle is the external-job management surface the service needs
type Lifecycle interface {
	Configured() bool
	ScheduleOnce(ctx context.Context, scheduleID string, fireAt time.Time, prevExternalID string) string
	Cancel(ctx context.Context, externalID string) bool
	RegisterRecurring(ctx context.Context, scheduleID string, freq recurrence.Frequency, tod recurrence.TimeOfDay, loc *time.Location) (string, error)
}

// Service wires the store, the content generator, and the lifecycle manager
type Service struct {
	store     Store
	generator content.Generator
	jobs      Lifecycle
	now       func() time.Time
	collector *metrics.Collector
	log       logger.Logger
}

// NewService creates the orchestration service
func NewService(store Store, generator content.Generator, jobs Lifecycle) *Service {
	return &Service{
		store:     store,
		generator: generator,
		jobs:      jobs,
		now:       time.Now,
		collector: metrics.Global(),
		log:       logger.Default().WithComponent(logger.ComponentScheduler),
	}
}

// SetNow overrides the clock (for testing)
func (svc *Service) SetNow(now func() time.Time) {
	svc.now = now
}

// Input carries the user-editable schedule fields
type Input struct {
	Frequency string
	TimeOfDay string
	Timezone  string
	Mode      string
	Prompt    schedule.PromptSource
}

// Result is the outcome of a create or update. Dispatched reports whether
// an external job was registered; when false the schedule still advances
// via the reconciliation sweep and the request is not a failure.
type Result struct {
	Schedule   *schedule.Schedule
	Dispatched bool
}

// parseInput validates the user-supplied fields
func parseInput(in Input) (recurrence.Frequency, recurrence.TimeOfDay, *time.Location, schedule.Mode, error) {
	freq, err := recurrence.ParseFrequency(in.Frequency)
	if err != nil {
		return "", recurrence.TimeOfDay{}, nil, "", err
	}

	tod, err := recurrence.ParseTimeOfDay(in.TimeOfDay)
	if err != nil {
		return "", recurrence.TimeOfDay{}, nil, "", err
	}

	loc := time.UTC
	if in.Timezone != "" {
		loc, err = time.LoadLocation(in.Timezone)
		if err != nil {
			return "", recurrence.TimeOfDay{}, nil, "", fmt.Errorf("invalid timezone %q: %w", in.Timezone, err)
		}
	}

	mode := schedule.Mode(in.Mode)
	if mode == "" {
		mode = schedule.ModeOneShot
	}
	if !schedule.ValidMode(mode) {
		return "", recurrence.TimeOfDay{}, nil, "", fmt.Errorf("invalid mode %q", in.Mode)
	}

	if in.Prompt == nil {
		return "", recurrence.TimeOfDay{}, nil, "", fmt.Errorf("prompt source is required")
	}

	return freq, tod, loc, mode, nil
}

// Create validates the input, computes the first run, persists the schedule
// and registers it with the dispatch service. Registration failure degrades
// to Dispatched=false; it never fails the request.
func (svc *Service) Create(ctx context.Context, in Input) (*Result, error) {
	freq, tod, loc, mode, err := parseInput(in)
	if err != nil {
		return nil, err
	}

	sch := schedule.New(freq, tod, in.Timezone, mode, in.Prompt)

	next, err := recurrence.NextRun(freq, tod, loc, svc.now())
	if err != nil {
		return nil, err
	}
	sch.NextRunAt = &next

	dispatched := svc.register(ctx, sch, next, "")

	if err := svc.store.Create(ctx, sch); err != nil {
		// The external job may now be orphaned; the dispatch webhook will
		// find no record and the job dies out
		if sch.ExternalJobID != "" {
			svc.jobs.Cancel(ctx, sch.ExternalJobID)
		}
		return nil, err
	}

	svc.log.Info("Schedule created",
		"schedule_id", sch.ID,
		"frequency", string(freq),
		"mode", string(mode),
		"next_run", next.Format(time.RFC3339),
		"dispatched", dispatched)
	return &Result{Schedule: sch, Dispatched: dispatched}, nil
}

// Update applies new fields to an existing schedule, recomputes the next
// run, and replaces the external job by cancel-and-recreate. The previous
// job's cancellation is best-effort and never blocks the new registration.
func (svc *Service) Update(ctx context.Context, id string, in Input) (*Result, error) {
	freq, tod, loc, mode, err := parseInput(in)
	if err != nil {
		return nil, err
	}

	sch, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sch.Frequency = freq
	sch.TimeOfDay = tod
	sch.Timezone = in.Timezone
	sch.Mode = mode
	sch.Prompt = in.Prompt
	sch.Active = true

	next, err := recurrence.NextRun(freq, tod, loc, svc.now())
	if err != nil {
		return nil, err
	}
	sch.NextRunAt = &next

	dispatched := svc.register(ctx, sch, next, sch.ExternalJobID)

	if err := svc.store.Update(ctx, sch); err != nil {
		return nil, err
	}

	svc.log.Info("Schedule updated",
		"schedule_id", sch.ID,
		"frequency", string(freq),
		"next_run", next.Format(time.RFC3339),
		"dispatched", dispatched)
	return &Result{Schedule: sch, Dispatched: dispatched}, nil
}

// register arms the external job for a schedule and rewrites its
// ExternalJobID. Returns whether a live job was registered.
func (svc *Service) register(ctx context.Context, sch *schedule.Schedule, fireAt time.Time, prevExternalID string) bool {
	if !svc.jobs.Configured() {
		sch.ExternalJobID = ""
		return false
	}

	var ext string
	switch sch.Mode {
	case schedule.ModeRecurring:
		if prevExternalID != "" {
			svc.jobs.Cancel(ctx, prevExternalID)
		}
		loc, err := sch.Location()
		if err != nil {
			svc.log.Error("Cannot resolve timezone for registration", "schedule_id", sch.ID, "error", err)
			sch.ExternalJobID = ""
			return false
		}
		ext, err = svc.jobs.RegisterRecurring(ctx, sch.ID, sch.Frequency, sch.TimeOfDay, loc)
		if err != nil {
			// Frequency was validated upstream; reaching this is a bug
			svc.log.Error("Recurring registration rejected", "schedule_id", sch.ID, "error", err)
			sch.ExternalJobID = ""
			return false
		}
	default:
		ext = svc.jobs.ScheduleOnce(ctx, sch.ID, fireAt, prevExternalID)
	}

	sch.ExternalJobID = ext
	if ext == "" {
		svc.collector.DispatchFailed()
		return false
	}
	svc.collector.DispatchRegistered()
	return true
}

// Get returns a schedule by id
func (svc *Service) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	return svc.store.Get(ctx, id)
}

// RecentPosts returns the newest generated posts for a schedule
func (svc *Service) RecentPosts(ctx context.Context, id string, n int64) ([]*schedule.Post, error) {
	return svc.store.RecentPosts(ctx, id, n)
}

// Delete cancels any live external job and removes the schedule
func (svc *Service) Delete(ctx context.Context, id string) error {
	sch, err := svc.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if sch.ExternalJobID != "" {
		svc.jobs.Cancel(ctx, sch.ExternalJobID)
	}

	if err := svc.store.Delete(ctx, id); err != nil {
		return err
	}

	svc.log.Info("Schedule deleted", "schedule_id", id)
	return nil
}

// Deactivate stops a schedule without deleting it: the external job is
// cancelled best-effort and no new run instants are produced
func (svc *Service) Deactivate(ctx context.Context, id string) error {
	sch, err := svc.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if sch.ExternalJobID != "" {
		svc.jobs.Cancel(ctx, sch.ExternalJobID)
	}

	sch.Active = false
	sch.NextRunAt = nil
	sch.ExternalJobID = ""

	if err := svc.store.Update(ctx, sch); err != nil {
		return err
	}

	svc.log.Info("Schedule deactivated", "schedule_id", id)
	return nil
}

// Run executes one occurrence of a schedule. It is the entry point for both
// the dispatch webhook and the reconciliation sweep: generate content, save
// the post, then compute and arm the next occurrence.
//
// One-shot schedules are re-armed even when generation fails, so a transient
// provider outage cannot permanently stall the recurrence.
func (svc *Service) Run(ctx context.Context, id string) error {
	svc.collector.RunStarted()

	sch, err := svc.store.Get(ctx, id)
	if err != nil {
		svc.collector.RunFailed()
		return err
	}

	if !sch.Active {
		// A fired job for a deactivated schedule; make sure nothing stays
		// registered and stop producing run instants
		if sch.ExternalJobID != "" {
			svc.jobs.Cancel(ctx, sch.ExternalJobID)
		}
		if err := svc.store.SetRun(ctx, id, nil, ""); err != nil {
			return err
		}
		svc.log.Info("Skipping run for inactive schedule", "schedule_id", id)
		return nil
	}

	loc, err := sch.Location()
	if err != nil {
		svc.collector.RunFailed()
		return err
	}

	genStart := svc.now()
	text, genErr := svc.generator.Generate(ctx, sch.Prompt)
	if genErr != nil {
		svc.collector.GenerationFailed()
		svc.log.Error("Content generation failed", "schedule_id", id, "error", genErr)
	} else {
		svc.collector.GenerationObserved(time.Since(genStart))
		if err := svc.store.SavePost(ctx, schedule.NewPost(id, text)); err != nil {
			svc.log.Error("Failed to save post", "schedule_id", id, "error", err)
		}
	}

	next, err := recurrence.NextRun(sch.Frequency, sch.TimeOfDay, loc, svc.now())
	if err != nil {
		svc.collector.RunFailed()
		return err
	}

	ext := sch.ExternalJobID
	if sch.Mode != schedule.ModeRecurring {
		// The fired one-shot job is gone; the stale handle is passed for a
		// best-effort cancel in case this run came from the sweep while the
		// dispatch job is still pending
		ext = svc.jobs.ScheduleOnce(ctx, id, next, sch.ExternalJobID)
	}

	if err := svc.store.SetRun(ctx, id, &next, ext); err != nil {
		svc.collector.RunFailed()
		return err
	}

	if genErr != nil {
		svc.collector.RunFailed()
		return fmt.Errorf("generation failed for schedule %s: %w", id, genErr)
	}

	svc.collector.RunCompleted()
	svc.log.Info("Run completed",
		"schedule_id", id,
		"next_run", next.Format(time.RFC3339),
		"rearmed", ext != "")
	return nil
}
