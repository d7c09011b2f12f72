package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var smsFactorErrors = map[string]string{
	"-1": "Authentication failed - check API token",
	"-2": "Missing mandatory parameter",
	"-3": "Insufficient credits",
	"-4": "Invalid phone number",
	"-5": "Invalid sender",
	"-6": "Message too long",
	"-7": "Invalid unicode parameter",
	"-8": "Invalid delay format",
	"-9": "Delay too far in the future",
}

// SMSFactor sends through api.smsfactor.com with a bearer token.
type SMSFactor struct {
	BaseURL string
	token   string
	client  *http.Client
}

func NewSMSFactor(token string, client *http.Client) *SMSFactor {
	return &SMSFactor{BaseURL: "https://api.smsfactor.com", token: token, client: client}
}

func (s *SMSFactor) Name() string { return "smsfactor" }

type smsFactorRequest struct {
	SMS struct {
		Message struct {
			Text     string `json:"text"`
			PushType string `json:"pushtype"`
			Sender   string `json:"sender"`
			Delay    string `json:"delay"`
			Unicode  int    `json:"unicode"`
		} `json:"message"`
		Recipients struct {
			GSM []smsFactorGSM `json:"gsm"`
		} `json:"recipients"`
	} `json:"sms"`
}

type smsFactorGSM struct {
	ID    string `json:"gsmsmsid"`
	Value string `json:"value"`
}

type smsFactorResponse struct {
	Status    flexString `json:"status"`
	Success   bool       `json:"success"`
	Ticket    flexString `json:"ticket"`
	MessageID flexString `json:"message_id"`
	Message   string     `json:"message"`
	Error     string     `json:"error"`
}

func (s *SMSFactor) Send(ctx context.Context, msg Message) (Result, error) {
	var req smsFactorRequest
	req.SMS.Message.Text = msg.Body
	req.SMS.Message.PushType = "alert"
	req.SMS.Message.Sender = msg.Sender
	if req.SMS.Message.Sender == "" {
		req.SMS.Message.Sender = "SMS"
	}
	req.SMS.Message.Delay = msg.Metadata["delay"]
	req.SMS.Recipients.GSM = []smsFactorGSM{{ID: "100", Value: NormalizeRecipient(msg.Recipient)}}

	body, err := jsonBody(req)
	if err != nil {
		return Result{}, err
	}

	respBody, err := doRequest(ctx, s.client, http.MethodPost, s.BaseURL+"/send", body, map[string]string{
		"Authorization": "Bearer " + s.token,
		"Content-Type":  "application/json",
	})
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return Result{}, err
	}

	var resp smsFactorResponse
	if jsonErr := json.Unmarshal(respBody, &resp); jsonErr != nil {
		if apiErr != nil {
			return Result{}, apiErr
		}
		return Result{}, fmt.Errorf("invalid response from SMS API: %w", jsonErr)
	}

	if apiErr == nil && (resp.Status == "1" || resp.Success) {
		id := string(resp.Ticket)
		if id == "" {
			id = string(resp.MessageID)
		}
		if id == "" {
			id = strconv.FormatInt(time.Now().UnixMilli(), 10)
		}
		return success(id), nil
	}

	if known, ok := smsFactorErrors[string(resp.Status)]; ok {
		return failure(known), nil
	}
	switch {
	case resp.Message != "":
		return failure(resp.Message), nil
	case resp.Error != "":
		return failure(resp.Error), nil
	}
	return failure("SMS sending failed"), nil
}
