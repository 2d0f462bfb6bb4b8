// -----------------------------------------------------------------------
// EventSearchJob - aggregate root for one city/date search job
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobStatus is the overall lifecycle status of an event search job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusPartial JobStatus = "partial"
	JobStatusEmpty   JobStatus = "empty"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusDone, JobStatusPartial, JobStatusEmpty, JobStatusFailed:
		return true
	}
	return false
}

// CategoryStatus is the per-category fetch state within a job.
type CategoryStatus string

const (
	CategoryNotStarted CategoryStatus = "not_started"
	CategoryInProgress CategoryStatus = "in_progress"
	CategoryCompleted  CategoryStatus = "completed"
	CategoryFailed     CategoryStatus = "failed"
)

// CategoryState tracks progress for one (job, category) pair. Transitions
// are monotonic: once completed or failed the state is terminal for the
// job; retries only increment Attempts while the state stays in_progress.
type CategoryState struct {
	Status      CategoryStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	EventCount  int            `json:"event_count"`
	Error       string         `json:"error,omitempty"`
}

// EventSearchJob is the aggregate root: one unit of "find events for city X
// on date Y across categories [..]" work.
type EventSearchJob struct {
	ID         string    `json:"id" badgerhold:"key"`
	City       string    `json:"city"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Categories []string  `json:"categories"`
	Status     JobStatus `json:"status"`

	CategoryStates map[string]*CategoryState `json:"category_states"`
	Events         []EventRecord             `json:"events"`

	TotalCategories     int `json:"total_categories"`
	CompletedCategories int `json:"completed_categories"`
	FailedCategories    int `json:"failed_categories"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Debug enables retention of raw provider prompts/responses per category.
	Debug bool `json:"debug,omitempty"`
}

// State returns the category state, creating a not_started entry on first use.
func (j *EventSearchJob) State(category string) *CategoryState {
	if j.CategoryStates == nil {
		j.CategoryStates = make(map[string]*CategoryState)
	}
	st, ok := j.CategoryStates[category]
	if !ok {
		st = &CategoryState{Status: CategoryNotStarted}
		j.CategoryStates[category] = st
	}
	return st
}

// RecountCategories recomputes the aggregate category counters from the
// state map.
func (j *EventSearchJob) RecountCategories() {
	j.TotalCategories = len(j.CategoryStates)
	j.CompletedCategories = 0
	j.FailedCategories = 0
	for _, st := range j.CategoryStates {
		switch st.Status {
		case CategoryCompleted:
			j.CompletedCategories++
		case CategoryFailed:
			j.FailedCategories++
		}
	}
}

// DeriveStatus computes the job status from the per-category states.
// The check order matters: a job with one completed category and many
// failed ones is partial, not failed.
func DeriveStatus(states map[string]*CategoryState) JobStatus {
	if len(states) == 0 {
		return JobStatusEmpty
	}

	completed, failed, events := 0, 0, 0
	for _, st := range states {
		switch st.Status {
		case CategoryCompleted:
			completed++
			events += st.EventCount
		case CategoryFailed:
			failed++
		}
	}

	switch {
	case completed == len(states) && events > 0:
		return JobStatusDone
	case completed == len(states):
		return JobStatusEmpty
	case completed > 0 && failed > 0:
		return JobStatusPartial
	case failed == len(states):
		return JobStatusFailed
	}

	// Categories still unresolved.
	return JobStatusRunning
}

// DebugRecord captures the raw provider exchange for one category of a job.
// Retained only when the job was created with the debug flag.
type DebugRecord struct {
	ID        string    `json:"id" badgerhold:"key"`
	JobID     string    `json:"job_id"`
	Category  string    `json:"category"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Provider  string    `json:"provider"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}
