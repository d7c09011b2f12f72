package campaign

import (
	"time"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	ReasonMissingPhone = "missing phone number"
	ReasonUnknown      = "unknown error"
)

// ContactError is one failed contact of a run.
type ContactError struct {
	ContactID int64  `json:"contact_id"`
	Contact   string `json:"contact"`
	Error     string `json:"error"`
}

// Results is the aggregate of one SMS campaign run.
// Sent+Failed always equals the number of processed contacts.
type Results struct {
	RunID      string         `json:"run_id"`
	Total      int            `json:"total"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Errors     []ContactError `json:"errors"`
	Progress   float64        `json:"progress"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Processed is the number of contacts already handled.
func (r Results) Processed() int {
	return r.Sent + r.Failed
}

func (r Results) copy() Results {
	out := r
	out.Errors = append([]ContactError{}, r.Errors...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func (r *Results) updateProgress() {
	if r.Total == 0 {
		return
	}
	r.Progress = float64(r.Processed()) / float64(r.Total)
}
