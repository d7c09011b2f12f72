package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// SMSEnvoi logs in with basic-auth credentials to obtain a user/session key
// pair, then sends with those keys. The pair is cached until the provider
// rejects it.
type SMSEnvoi struct {
	BaseURL  string
	email    string
	password string
	client   *http.Client

	mu         sync.Mutex
	userKey    string
	sessionKey string
}

func NewSMSEnvoi(email, password string, client *http.Client) *SMSEnvoi {
	return &SMSEnvoi{
		BaseURL:  "https://api.smsenvoi.com/API/v1.0/REST",
		email:    email,
		password: password,
		client:   client,
	}
}

func (s *SMSEnvoi) Name() string { return "smsenvoi" }

type smsEnvoiRequest struct {
	MessageType     string   `json:"message_type"`
	Message         string   `json:"message"`
	Recipient       []string `json:"recipient"`
	Sender          string   `json:"sender"`
	ReturnCredits   bool     `json:"returnCredits"`
	ReturnRemaining bool     `json:"returnRemaining"`
}

type smsEnvoiResponse struct {
	Result  string     `json:"result"`
	OrderID flexString `json:"order_id"`
	Error   string     `json:"error"`
	Details string     `json:"details"`
}

func (s *SMSEnvoi) session(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userKey != "" {
		return s.userKey, s.sessionKey, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/login", nil)
	if err != nil {
		return "", "", err
	}
	req.SetBasicAuth(s.email, s.password)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode >= 400 {
		return "", "", &APIError{Status: resp.StatusCode, Body: data}
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), ";", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("unexpected login response from SMSenvoi: %q", data)
	}
	s.userKey, s.sessionKey = parts[0], parts[1]
	return s.userKey, s.sessionKey, nil
}

func (s *SMSEnvoi) forget() {
	s.mu.Lock()
	s.userKey, s.sessionKey = "", ""
	s.mu.Unlock()
}

func (s *SMSEnvoi) Send(ctx context.Context, msg Message) (Result, error) {
	userKey, sessionKey, err := s.session(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("smsenvoi login: %w", err)
	}

	body, err := jsonBody(smsEnvoiRequest{
		MessageType:     "PRM",
		Message:         msg.Body,
		Recipient:       []string{NormalizeRecipient(msg.Recipient)},
		Sender:          msg.Sender,
		ReturnCredits:   true,
		ReturnRemaining: true,
	})
	if err != nil {
		return Result{}, err
	}

	respBody, err := doRequest(ctx, s.client, http.MethodPost, s.BaseURL+"/sms", body, map[string]string{
		"Content-Type": "application/json",
		"user_key":     userKey,
		"Session_key":  sessionKey,
	})
	var apiErr *APIError
	if err != nil {
		if !errors.As(err, &apiErr) {
			return Result{}, err
		}
		if apiErr.Status == http.StatusUnauthorized {
			s.forget()
		}
	}

	var resp smsEnvoiResponse
	if jsonErr := json.Unmarshal(respBody, &resp); jsonErr != nil {
		if apiErr != nil {
			return Result{}, apiErr
		}
		return Result{}, fmt.Errorf("invalid response from SMS API: %w", jsonErr)
	}

	if apiErr == nil && resp.Result == "OK" {
		return success(string(resp.OrderID)), nil
	}
	switch {
	case resp.Error != "":
		return failure(resp.Error), nil
	case resp.Details != "":
		return failure(resp.Details), nil
	}
	return failure("Erreur inconnue"), nil
}
