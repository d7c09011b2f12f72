package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SpotHit sends through the Spot-Hit form API, authenticated by API key.
type SpotHit struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

func NewSpotHit(apiKey string, client *http.Client) *SpotHit {
	return &SpotHit{BaseURL: "https://www.spot-hit.fr", apiKey: apiKey, client: client}
}

func (s *SpotHit) Name() string { return "spothit" }

type spotHitResponse struct {
	Resultat flexString      `json:"resultat"`
	ID       flexString      `json:"id"`
	Erreurs  json.RawMessage `json:"erreurs"`
}

func (s *SpotHit) Send(ctx context.Context, msg Message) (Result, error) {
	form := url.Values{}
	form.Set("key", s.apiKey)
	form.Set("destinataires", NormalizeRecipient(msg.Recipient))
	form.Set("message", msg.Body)
	form.Set("expediteur", msg.Sender)
	form.Set("type", "premium")
	if v := msg.Metadata["date"]; v != "" {
		form.Set("date", v)
	}

	respBody, err := doRequest(ctx, s.client, http.MethodPost, s.BaseURL+"/api/envoyer/sms",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return Result{}, err
	}

	var resp spotHitResponse
	if jsonErr := json.Unmarshal(respBody, &resp); jsonErr != nil {
		if apiErr != nil {
			return Result{}, apiErr
		}
		return Result{}, fmt.Errorf("invalid response from SMS API: %w", jsonErr)
	}

	if apiErr == nil && (resp.Resultat == "true" || resp.Resultat == "1") {
		return success(string(resp.ID)), nil
	}
	if errMsg := spotHitError(resp.Erreurs); errMsg != "" {
		return failure(errMsg), nil
	}
	return failure("SMS sending failed"), nil
}

// spotHitError flattens the "erreurs" field, which is either a string, a code
// or a list of codes.
func spotHitError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []flexString
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, p := range list {
			parts = append(parts, string(p))
		}
		return "Spot-Hit error " + strings.Join(parts, ", ")
	}
	return "Spot-Hit error " + strings.TrimSpace(string(raw))
}
