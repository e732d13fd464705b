// Package schedule defines the persisted schedule record and its Redis store.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/muaviaUsmani/cadence/internal/recurrence"
)

// Mode selects how a schedule is registered with the dispatch service
type Mode string

const (
	// ModeOneShot registers a single delayed job and re-arms after each firing
	ModeOneShot Mode = "oneshot"
	// ModeRecurring registers a cron-driven job the dispatch service repeats itself
	ModeRecurring Mode = "recurring"
)

// ValidMode reports whether m is a known registration mode
func ValidMode(m Mode) bool {
	return m == ModeOneShot || m == ModeRecurring
}

// Schedule is a recurring content-generation job as persisted in the store.
// NextRunAt and ExternalJobID are rewritten by the scheduler on every
// create/update/run cycle; everything else is user-owned.
type Schedule struct {
	// ID is the unique identifier for the schedule
	ID string `json:"id"`
	// Frequency is the recurrence class
	Frequency recurrence.Frequency `json:"frequency"`
	// TimeOfDay is the wall-clock target time in Timezone
	TimeOfDay recurrence.TimeOfDay `json:"time_of_day"`
	// Timezone is the IANA identifier used to interpret TimeOfDay
	Timezone string `json:"timezone"`
	// Mode selects one-shot re-registration or native-recurring dispatch
	Mode Mode `json:"mode"`
	// Prompt is the content-generation prompt source
	Prompt PromptSource `json:"-"`
	// NextRunAt is the next computed execution instant, nil when not
	// scheduled or permanently stopped
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	// ExternalJobID is the opaque handle of the live dispatch job, empty
	// when none is registered
	ExternalJobID string `json:"external_job_id,omitempty"`
	// Active gates all scheduling; an inactive schedule never produces new
	// run instants
	Active bool `json:"active"`
	// CreatedAt is when the schedule was created
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the schedule was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active schedule with a fresh id
func New(freq recurrence.Frequency, tod recurrence.TimeOfDay, timezone string, mode Mode, prompt PromptSource) *Schedule {
	now := time.Now().UTC()
	return &Schedule{
		ID:        uuid.New().String(),
		Frequency: freq,
		TimeOfDay: tod,
		Timezone:  timezone,
		Mode:      mode,
		Prompt:    prompt,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Location resolves the schedule's IANA timezone
func (s *Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// scheduleJSON carries the wire shape including the prompt envelope
type scheduleJSON struct {
	ID            string               `json:"id"`
	Frequency     recurrence.Frequency `json:"frequency"`
	TimeOfDay     string               `json:"time_of_day"`
	Timezone      string               `json:"timezone"`
	Mode          Mode                 `json:"mode"`
	Prompt        json.RawMessage      `json:"prompt"`
	NextRunAt     *time.Time           `json:"next_run_at,omitempty"`
	ExternalJobID string               `json:"external_job_id,omitempty"`
	Active        bool                 `json:"active"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler
func (s *Schedule) MarshalJSON() ([]byte, error) {
	prompt, err := MarshalPromptSource(s.Prompt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(scheduleJSON{
		ID:            s.ID,
		Frequency:     s.Frequency,
		TimeOfDay:     s.TimeOfDay.String(),
		Timezone:      s.Timezone,
		Mode:          s.Mode,
		Prompt:        prompt,
		NextRunAt:     s.NextRunAt,
		ExternalJobID: s.ExternalJobID,
		Active:        s.Active,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw scheduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tod, err := recurrence.ParseTimeOfDay(raw.TimeOfDay)
	if err != nil {
		return err
	}

	var prompt PromptSource
	if len(raw.Prompt) > 0 {
		prompt, err = UnmarshalPromptSource(raw.Prompt)
		if err != nil {
			return err
		}
	}

	*s = Schedule{
		ID:            raw.ID,
		Frequency:     raw.Frequency,
		TimeOfDay:     tod,
		Timezone:      raw.Timezone,
		Mode:          raw.Mode,
		Prompt:        prompt,
		NextRunAt:     raw.NextRunAt,
		ExternalJobID: raw.ExternalJobID,
		Active:        raw.Active,
		CreatedAt:     raw.CreatedAt,
		UpdatedAt:     raw.UpdatedAt,
	}
	return nil
}

// Post is a single generated piece of content
type Post struct {
	// ID is the unique identifier for the post
	ID string `json:"id"`
	// ScheduleID links the post to the schedule that produced it
	ScheduleID string `json:"schedule_id"`
	// Content is the generated text
	Content string `json:"content"`
	// CreatedAt is when the post was generated
	CreatedAt time.Time `json:"created_at"`
}

// NewPost creates a post with a fresh id
func NewPost(scheduleID, content string) *Post {
	return &Post{
		ID:         uuid.New().String(),
		ScheduleID: scheduleID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
}
