// Package voice drives outbound AI voice calls, one contact at a time.
package voice

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoPhoneNumber  = errors.New("aucun numéro de téléphone trouvé pour ce contact")
	ErrCallInProgress = errors.New("call already started")
	ErrCallNotActive  = errors.New("call is not active")
	ErrNotRunning     = errors.New("voice campaign is not running")
	ErrAlreadyRunning = errors.New("voice campaign already running")
	ErrNotPaused      = errors.New("voice campaign is not paused")
)

// InitiateRequest is what the provider needs to dial a contact.
type InitiateRequest struct {
	PhoneNumber  string
	FirstMessage string
	CustomerName string
}

// ProviderStatus is one poll of an in-flight call.
type ProviderStatus struct {
	Status          string  `json:"status"` // queued, ringing, in-progress, ended, failed
	DurationSeconds float64 `json:"duration,omitempty"`
	Transcript      string  `json:"transcript,omitempty"`
	EndedReason     string  `json:"endedReason,omitempty"`
}

// Terminal reports whether the provider is done with the call.
func (s ProviderStatus) Terminal() bool {
	return s.Status == "ended" || s.Status == "failed"
}

// Answered reports whether the customer picked up.
func (s ProviderStatus) Answered() bool {
	return s.Status == "in-progress" || s.Status == "active" || s.Status == "forwarding"
}

// Caller is the VoiceCall capability.
type Caller interface {
	Initiate(ctx context.Context, req InitiateRequest) (callID string, err error)
	PollStatus(ctx context.Context, callID string) (ProviderStatus, error)
}

// Terminator is implemented by providers able to hang up a live call.
type Terminator interface {
	Terminate(ctx context.Context, callID string) error
}

type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
	ResultNoAnswer  ResultStatus = "no-answer"
)

const (
	ReasonCallerEnded      = "caller-ended"
	ReasonTimeout          = "timeout"
	ReasonInitiationFailed = "initiation-failed"
	ReasonCancelled        = "cancelled"
	ReasonNoPhone          = "missing-phone-number"
)

// CallResult is the terminal outcome of one call.
type CallResult struct {
	CallID          string       `json:"call_id,omitempty"`
	ContactID       int64        `json:"contact_id"`
	DurationSeconds int          `json:"duration"`
	Status          ResultStatus `json:"status"`
	Transcript      string       `json:"transcript,omitempty"`
	Sentiment       Sentiment    `json:"sentiment"`
	EndedReason     string       `json:"ended_reason,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// statusFromEndedReason maps the provider's ended reason to a result status.
func statusFromEndedReason(reason string) ResultStatus {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "no-answer"),
		strings.Contains(r, "did-not-answer"),
		strings.Contains(r, "busy"):
		return ResultNoAnswer
	case strings.Contains(r, "error"),
		strings.Contains(r, "fail"):
		return ResultFailed
	default:
		return ResultCompleted
	}
}
