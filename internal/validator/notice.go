package validator

import (
	"time"
	"unicode/utf8"
)

// Reason names the rule that changed a template.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonCurrency Reason = "currency"
	ReasonTerm     Reason = "blocked_term"
	ReasonLength   Reason = "length"
)

var reasonMessages = map[Reason]string{
	ReasonCurrency: "Les symboles monétaires ne sont pas autorisés",
	ReasonTerm:     "Termes interdits détectés (paiement, casino, montant, etc.)",
	ReasonLength:   "Maximum 160 caractères",
}

// Outcome is the result of validating one edit.
type Outcome struct {
	Cleaned string  `json:"cleaned"`
	Changed bool    `json:"changed"`
	Notice  *Notice `json:"notice,omitempty"`
}

// Notice is a transient operator warning.
type Notice struct {
	Reason    Reason    `json:"reason"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the notice should no longer be shown at now.
func (n *Notice) Expired(now time.Time) bool {
	return n == nil || !now.Before(n.ExpiresAt)
}

// Check cleans raw and, when the cleaned text differs, explains why.
// Currency wins over blocked terms, which win over length.
func Check(raw string, now time.Time) Outcome {
	cleaned := Clean(raw)
	out := Outcome{Cleaned: cleaned, Changed: cleaned != raw}
	if !out.Changed || raw == "" {
		return out
	}

	reason := classify(raw)
	if reason == ReasonNone {
		return out
	}
	out.Notice = &Notice{
		Reason:    reason,
		Message:   reasonMessages[reason],
		ExpiresAt: now.Add(DismissAfter),
	}
	return out
}

func classify(raw string) Reason {
	switch {
	case hasCurrency(raw):
		return ReasonCurrency
	case hasBlockedTerm(truncate(raw, MaxLength)):
		return ReasonTerm
	case utf8.RuneCountInString(raw) > MaxLength:
		return ReasonLength
	default:
		return ReasonNone
	}
}
