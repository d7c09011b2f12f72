// Package vapi talks to the Vapi REST API: outbound phone calls and the
// assistant that handles them.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campaign-console/internal/config"
	"campaign-console/internal/voice"
)

const DefaultBaseURL = "https://api.vapi.ai"

// APIError is a non-2xx answer. Message is meant for the operator.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Message, e.Status, strings.TrimSpace(string(e.Body)))
}

// Details returns the provider error body, decoded when it is JSON.
func (e *APIError) Details() interface{} {
	var v interface{}
	if err := json.Unmarshal(e.Body, &v); err == nil {
		return v
	}
	return map[string]string{"message": string(e.Body)}
}

type Client struct {
	BaseURL       string
	apiKey        string
	phoneNumberID string
	assistantID   string
	http          *http.Client
}

func NewClient(cfg *config.Config) *Client {
	base := cfg.VapiBaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(base, "/"),
		apiKey:        cfg.VapiAPIKey,
		phoneNumberID: cfg.VapiPhoneNumberID,
		assistantID:   cfg.VapiAssistantID,
		http:          &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Payloads ---

type customer struct {
	Number                 string `json:"number"`
	Name                   string `json:"name,omitempty"`
	NumberE164CheckEnabled bool   `json:"numberE164CheckEnabled"`
}

type assistantOverrides struct {
	FirstMessage string `json:"firstMessage,omitempty"`
}

type callRequest struct {
	AssistantID        string              `json:"assistantId"`
	PhoneNumberID      string              `json:"phoneNumberId"`
	Customer           customer            `json:"customer"`
	AssistantOverrides *assistantOverrides `json:"assistantOverrides,omitempty"`
}

// Call is the subset of a Vapi call the console uses.
type Call struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Duration     float64    `json:"duration,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	RecordingURL string     `json:"recordingUrl,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	EndedReason  string     `json:"endedReason,omitempty"`
	Cost         float64    `json:"cost,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	Artifact     *struct {
		Transcript   string `json:"transcript,omitempty"`
		RecordingURL string `json:"recordingUrl,omitempty"`
	} `json:"artifact,omitempty"`
}

// DurationSeconds prefers the reported duration, then the call timestamps.
func (c *Call) DurationSeconds() float64 {
	if c.Duration > 0 {
		return c.Duration
	}
	if c.StartedAt != nil && c.EndedAt != nil {
		return c.EndedAt.Sub(*c.StartedAt).Seconds()
	}
	return 0
}

func (c *Call) transcript() string {
	if c.Transcript != "" {
		return c.Transcript
	}
	if c.Artifact != nil {
		return c.Artifact.Transcript
	}
	return ""
}

type Assistant struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	FirstMessage     string          `json:"firstMessage"`
	VoicemailMessage string          `json:"voicemailMessage,omitempty"`
	EndCallMessage   string          `json:"endCallMessage,omitempty"`
	Model            json.RawMessage `json:"model,omitempty"`
	Voice            json.RawMessage `json:"voice,omitempty"`
	Transcriber      json.RawMessage `json:"transcriber,omitempty"`
}

// AssistantUpdate carries only the fields to change.
type AssistantUpdate struct {
	Name             *string         `json:"name,omitempty"`
	FirstMessage     *string         `json:"firstMessage,omitempty"`
	VoicemailMessage *string         `json:"voicemailMessage,omitempty"`
	EndCallMessage   *string         `json:"endCallMessage,omitempty"`
	Model            json.RawMessage `json:"model,omitempty"`
	Voice            json.RawMessage `json:"voice,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u AssistantUpdate) Empty() bool {
	return u.Name == nil && u.FirstMessage == nil && u.VoicemailMessage == nil &&
		u.EndCallMessage == nil && len(u.Model) == 0 && len(u.Voice) == 0
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// initiateMessage is what the operator reads when Vapi refuses a call.
func initiateMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Authentification échouée. Vérifiez que votre VAPI_API_KEY est correcte."
	case http.StatusForbidden:
		return "Accès refusé. Vérifiez les permissions de votre numéro de téléphone Vapi."
	case http.StatusBadRequest:
		return "Requête invalide. Vérifiez vos paramètres."
	default:
		return "Erreur lors de l'initiation de l'appel"
	}
}

// --- Calls ---

// Initiate places an outbound call and returns its id.
func (c *Client) Initiate(ctx context.Context, req voice.InitiateRequest) (string, error) {
	if req.PhoneNumber == "" {
		return "", errors.New("Numéro de téléphone requis")
	}
	payload := callRequest{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.phoneNumberID,
		Customer: customer{
			Number: req.PhoneNumber,
			Name:   req.CustomerName,
		},
	}
	if req.FirstMessage != "" {
		payload.AssistantOverrides = &assistantOverrides{FirstMessage: req.FirstMessage}
	}

	body, status, err := c.sendRequest(ctx, http.MethodPost, "/call/phone", payload)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", &APIError{Status: status, Message: initiateMessage(status), Body: body}
	}

	var call Call
	if err := json.Unmarshal(body, &call); err != nil {
		return "", fmt.Errorf("decode call: %w", err)
	}
	if call.ID == "" {
		return "", errors.New("vapi response has no call id")
	}
	return call.ID, nil
}

// GetCall fetches the current state of a call.
func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	body, status, err := c.sendRequest(ctx, http.MethodGet, "/call/"+url.PathEscape(callID), nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{Status: status, Message: "Erreur lors de la récupération du statut", Body: body}
	}

	var call Call
	if err := json.Unmarshal(body, &call); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	return &call, nil
}

func (c *Client) PollStatus(ctx context.Context, callID string) (voice.ProviderStatus, error) {
	call, err := c.GetCall(ctx, callID)
	if err != nil {
		return voice.ProviderStatus{}, err
	}
	return voice.ProviderStatus{
		Status:          call.Status,
		DurationSeconds: call.DurationSeconds(),
		Transcript:      call.transcript(),
		EndedReason:     call.EndedReason,
	}, nil
}

// Terminate hangs up a live call.
func (c *Client) Terminate(ctx context.Context, callID string) error {
	body, status, err := c.sendRequest(ctx, http.MethodDelete, "/call/"+url.PathEscape(callID), nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &APIError{Status: status, Message: "Erreur lors de la fin de l'appel", Body: body}
	}
	return nil
}

// --- Assistant ---

func (c *Client) GetAssistant(ctx context.Context) (*Assistant, error) {
	body, status, err := c.sendRequest(ctx, http.MethodGet, "/assistant/"+c.assistantID, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{Status: status, Message: "Erreur lors de la récupération de l'assistant", Body: body}
	}

	var a Assistant
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("decode assistant: %w", err)
	}
	return &a, nil
}

func (c *Client) UpdateAssistant(ctx context.Context, update AssistantUpdate) (*Assistant, error) {
	body, status, err := c.sendRequest(ctx, http.MethodPatch, "/assistant/"+c.assistantID, update)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{Status: status, Message: "Erreur lors de la mise à jour de l'assistant", Body: body}
	}

	var a Assistant
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("decode assistant: %w", err)
	}
	return &a, nil
}
