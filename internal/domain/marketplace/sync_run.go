package marketplace

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxErrorMessageLength bounds a single error message stored on a run
	MaxErrorMessageLength = 500
	// MaxRunErrors bounds the error list of a single run
	MaxRunErrors = 1000
)

// Well-known error contexts
const (
	ErrorContextTimeout = "timeout"
	ErrorContextRun     = "run"
)

// ---------------------------------------------------------------------------
// RunStatus
// ---------------------------------------------------------------------------

// RunStatus is the lifecycle state of a SyncRun
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsValid returns true if the status is known
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for COMPLETED and FAILED
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	return string(s)
}

// TriggerSource records who started a run
type TriggerSource string

const (
	TriggerManual    TriggerSource = "manual"
	TriggerScheduled TriggerSource = "scheduled"
)

// ---------------------------------------------------------------------------
// Counts and errors
// ---------------------------------------------------------------------------

// SyncCounts aggregates per-item outcomes
type SyncCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Add accumulates other into c
func (c *SyncCounts) Add(other SyncCounts) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
	c.Failed += other.Failed
}

// SyncError is one entry of a run's ordered error list
type SyncError struct {
	Context    string    `json:"context"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRun records one orchestrator invocation. It is created RUNNING and
// finalized exactly once as COMPLETED or FAILED.
type SyncRun struct {
	ID          uuid.UUID
	Accounts    []Account
	Mode        SyncMode
	Strategy    ConflictStrategy
	TriggeredBy TriggerSource
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Counts      SyncCounts
	Errors      []SyncError
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSyncRun creates a RUNNING run
func NewSyncRun(accounts []Account, mode SyncMode, strategy ConflictStrategy, trigger TriggerSource, now time.Time) (*SyncRun, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	for _, a := range accounts {
		if !a.IsValid() {
			return nil, ErrInvalidAccount
		}
	}
	if !mode.IsValid() {
		return nil, ErrInvalidSyncMode
	}
	if !strategy.IsValid() {
		return nil, ErrInvalidStrategy
	}
	if trigger == "" {
		trigger = TriggerManual
	}

	return &SyncRun{
		ID:          uuid.New(),
		Accounts:    append([]Account(nil), accounts...),
		Mode:        mode,
		Strategy:    strategy,
		TriggeredBy: trigger,
		Status:      RunStatusRunning,
		StartedAt:   now,
		Errors:      make([]SyncError, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RecordError appends an error entry; the message is truncated and the list is bounded
func (r *SyncRun) RecordError(context, message string, now time.Time) {
	if len(r.Errors) >= MaxRunErrors {
		return
	}
	r.Errors = append(r.Errors, SyncError{
		Context:    context,
		Message:    TruncateMessage(message, MaxErrorMessageLength),
		OccurredAt: now,
	})
	r.UpdatedAt = now
}

// AddCounts accumulates batch counts into the run
func (r *SyncRun) AddCounts(c SyncCounts) {
	r.Counts.Add(c)
}

// Complete finalizes the run as COMPLETED
func (r *SyncRun) Complete(now time.Time) error {
	return r.finalize(RunStatusCompleted, now)
}

// Fail finalizes the run as FAILED with the given error entry
func (r *SyncRun) Fail(context, message string, now time.Time) error {
	if r.IsFinalized() {
		return ErrRunAlreadyFinalized
	}
	// the terminal cause is kept even when the list is full
	r.Errors = append(r.Errors, SyncError{
		Context:    context,
		Message:    TruncateMessage(message, MaxErrorMessageLength),
		OccurredAt: now,
	})
	return r.finalize(RunStatusFailed, now)
}

// TimeOut finalizes the run as FAILED with a dedicated timeout entry
func (r *SyncRun) TimeOut(limit time.Duration, now time.Time) error {
	return r.Fail(ErrorContextTimeout, "sync timed out after "+limit.String(), now)
}

func (r *SyncRun) finalize(status RunStatus, now time.Time) error {
	if r.IsFinalized() {
		return ErrRunAlreadyFinalized
	}
	r.Status = status
	completed := now
	r.CompletedAt = &completed
	r.UpdatedAt = now
	return nil
}

// IsFinalized returns true once the run reached a terminal status
func (r *SyncRun) IsFinalized() bool {
	return r.Status.IsTerminal()
}

// HasTimedOut returns true if the run carries a timeout entry
func (r *SyncRun) HasTimedOut() bool {
	for _, e := range r.Errors {
		if e.Context == ErrorContextTimeout {
			return true
		}
	}
	return false
}

// Duration returns the elapsed time of a finalized run, or zero while running
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TruncateMessage shortens s to at most limit bytes, marking the cut.
// The cut never splits a UTF-8 sequence.
func TruncateMessage(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	const marker = "..."
	if limit <= len(marker) {
		return s[:runeBoundary(s, limit)]
	}
	return s[:runeBoundary(s, limit-len(marker))] + marker
}

// runeBoundary backs n off to the start of the rune it falls in
func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
