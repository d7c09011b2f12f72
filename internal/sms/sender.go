// Package sms normalises SMS providers behind one Send contract.
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campaign-console/internal/config"
)

var ErrUnavailable = errors.New("sms capability unavailable")

// Message is one outbound SMS.
type Message struct {
	Recipient string            `json:"recipient"`
	Body      string            `json:"message"`
	Sender    string            `json:"sender"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result is the provider outcome. When OK is false ErrorMessage explains why.
type Result struct {
	OK                bool   `json:"ok"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	ErrorMessage      string `json:"error,omitempty"`
}

func success(id string) Result {
	return Result{OK: true, ProviderMessageID: id}
}

func failure(msg string) Result {
	return Result{ErrorMessage: msg}
}

// Sender sends a single SMS. A non-nil error means the provider could not be
// reached or answered something unreadable; refusals come back as Result.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Name() string
}

// Unavailable is the Sender used when the provider is not configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) Send(context.Context, Message) (Result, error) {
	return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// NewSender builds the adapter selected by SMS_PROVIDER.
func NewSender(cfg *config.Config) Sender {
	if missing := cfg.MissingSMS(); len(missing) > 0 {
		return Unavailable{Reason: "Configuration manquante: " + strings.Join(missing, ", ")}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	switch cfg.SMSProvider {
	case "spothit":
		return NewSpotHit(cfg.SpotHitAPIKey, client)
	case "smsenvoi":
		return NewSMSEnvoi(cfg.SMSEnvoiEmail, cfg.SMSEnvoiPassword, client)
	default:
		return NewSMSFactor(cfg.SMSFactorToken, client)
	}
}

// NormalizeRecipient removes spaces and a leading plus, which the providers reject.
func NormalizeRecipient(number string) string {
	return strings.TrimPrefix(strings.Join(strings.Fields(number), ""), "+")
}
