// Package jobs defines the job record, the fixed set of job types with their
// typed parameters, and the rules that govern status transitions.
package jobs

import (
	"encoding/json"
	"time"
)

// Job is a single scheduled computation against a world.
type Job struct {
	ID           string          `json:"id"`
	WorldID      string          `json:"world_id"`
	Type         Type            `json:"job_type"`
	Parameters   json.RawMessage `json:"parameters"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// Clone returns a deep copy so callers can't mutate a store's record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Parameters = cloneRaw(j.Parameters)
	c.Result = cloneRaw(j.Result)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool { return j.Status.Terminal() }

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}
