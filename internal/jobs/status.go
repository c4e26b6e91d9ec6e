package jobs

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Transition is a requested status change. Stores apply it atomically and only
// when the job's current status is one of Sources().
type Transition struct {
	To       Status
	Progress int
	Result   json.RawMessage
	Error    string
}

// Start moves a pending job to running at progress 0.
func Start() Transition { return Transition{To: StatusRunning} }

// ReportProgress records progress on a running job.
func ReportProgress(p int) Transition { return Transition{To: StatusRunning, Progress: p} }

// Complete records a successful result.
func Complete(result json.RawMessage) Transition {
	return Transition{To: StatusCompleted, Progress: 100, Result: result}
}

// Fail records a failure message.
func Fail(msg string) Transition { return Transition{To: StatusFailed, Error: msg} }

// Sources lists the statuses the transition may be applied from.
func (t Transition) Sources() []Status {
	switch t.To {
	case StatusRunning:
		return []Status{StatusPending, StatusRunning}
	case StatusCompleted, StatusFailed:
		return []Status{StatusRunning}
	}
	return nil
}

// Allows reports whether a job currently in from may take this transition.
func (t Transition) Allows(from Status) bool {
	return slices.Contains(t.Sources(), from)
}

func (t Transition) Validate() error {
	switch {
	case len(t.Sources()) == 0:
		return fmt.Errorf("%w: target %q", ErrInvalidTransition, t.To)
	case t.Progress < 0 || t.Progress > 100:
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidTransition, t.Progress)
	case t.To == StatusCompleted && len(t.Result) == 0:
		return fmt.Errorf("%w: completed without result", ErrInvalidTransition)
	case t.To == StatusFailed && t.Error == "":
		return fmt.Errorf("%w: failed without message", ErrInvalidTransition)
	}
	return nil
}

// Apply mutates j in place when the transition is allowed from its current
// status and reports whether it did. Timestamps are first-write-wins.
func (t Transition) Apply(j *Job, now time.Time) bool {
	if j == nil || !t.Allows(j.Status) {
		return false
	}
	j.Status = t.To
	switch t.To {
	case StatusRunning:
		j.Progress = t.Progress
		if j.StartedAt == nil {
			ts := now
			j.StartedAt = &ts
		}
	case StatusCompleted:
		j.Progress = 100
		j.Result = cloneRaw(t.Result)
		j.ErrorMessage = ""
	case StatusFailed:
		j.ErrorMessage = t.Error
	}
	if t.To.Terminal() && j.CompletedAt == nil {
		ts := now
		j.CompletedAt = &ts
	}
	return true
}
