package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"campaign-console/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() context.Context {
	return context.Background()
}

func TestNewSender_Unavailable(t *testing.T) {
	s := NewSender(&config.Config{SMSProvider: "smsfactor"})
	assert.Equal(t, "unavailable", s.Name())

	_, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "Bonjour"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "SMS_FACTOR_TOKEN")
}

func TestNewSender_Selects(t *testing.T) {
	assert.Equal(t, "smsfactor", NewSender(&config.Config{SMSProvider: "smsfactor", SMSFactorToken: "t"}).Name())
	assert.Equal(t, "spothit", NewSender(&config.Config{SMSProvider: "spothit", SpotHitAPIKey: "k"}).Name())
	assert.Equal(t, "smsenvoi", NewSender(&config.Config{
		SMSProvider: "smsenvoi", SMSEnvoiEmail: "e", SMSEnvoiPassword: "p",
	}).Name())
}

func TestNormalizeRecipient(t *testing.T) {
	assert.Equal(t, "33600000001", NormalizeRecipient("+33 6 00 00 00 01"))
	assert.Equal(t, "0601020304", NormalizeRecipient("0601020304"))
}

func TestSMSFactor_Success(t *testing.T) {
	var got smsFactorRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":1,"ticket":"T-42"}`))
	}))
	defer srv.Close()

	s := NewSMSFactor("tok", srv.Client())
	s.BaseURL = srv.URL

	res, err := s.Send(newContext(), Message{Recipient: "+33 600000001", Body: "Bonjour Dubois", Sender: "EFFY PART"})
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, ProviderMessageID: "T-42"}, res)

	assert.Equal(t, "Bonjour Dubois", got.SMS.Message.Text)
	assert.Equal(t, "EFFY PART", got.SMS.Message.Sender)
	assert.Equal(t, "alert", got.SMS.Message.PushType)
	assert.Equal(t, []smsFactorGSM{{ID: "100", Value: "33600000001"}}, got.SMS.Recipients.GSM)
}

func TestSMSFactor_KnownError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"-3","message":"no credits"}`))
	}))
	defer srv.Close()

	s := NewSMSFactor("tok", srv.Client())
	s.BaseURL = srv.URL

	res, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "x"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Insufficient credits", res.ErrorMessage)
}

func TestSMSFactor_HTTPErrorWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	s := NewSMSFactor("tok", srv.Client())
	s.BaseURL = srv.URL

	_, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestSpotHit_FormBody(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/envoyer/sms", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		_, _ = w.Write([]byte(`{"resultat":true,"id":9001}`))
	}))
	defer srv.Close()

	s := NewSpotHit("key-1", srv.Client())
	s.BaseURL = srv.URL

	res, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "Bonjour", Sender: "EFFY"})
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, ProviderMessageID: "9001"}, res)
	assert.Equal(t, "key-1", form.Get("key"))
	assert.Equal(t, "0601020304", form.Get("destinataires"))
	assert.Equal(t, "Bonjour", form.Get("message"))
	assert.Equal(t, "EFFY", form.Get("expediteur"))
}

func TestSpotHit_Refused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultat":false,"erreurs":[2,5]}`))
	}))
	defer srv.Close()

	s := NewSpotHit("key-1", srv.Client())
	s.BaseURL = srv.URL

	res, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Spot-Hit error 2, 5", res.ErrorMessage)
}

func TestSMSEnvoi_LoginThenSend(t *testing.T) {
	logins := 0
	var got smsEnvoiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "ops@example.fr", user)
			assert.Equal(t, "secret", pass)
			logins++
			_, _ = w.Write([]byte("UK1;SK1"))
		case "/sms":
			assert.Equal(t, "UK1", r.Header.Get("user_key"))
			assert.Equal(t, "SK1", r.Header.Get("Session_key"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"result":"OK","order_id":"ord-7"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSMSEnvoi("ops@example.fr", "secret", srv.Client())
	s.BaseURL = srv.URL

	for i := 0; i < 2; i++ {
		res, err := s.Send(newContext(), Message{Recipient: "+33600000001", Body: "Bonjour", Sender: "EFFY"})
		require.NoError(t, err)
		assert.Equal(t, Result{OK: true, ProviderMessageID: "ord-7"}, res)
	}
	assert.Equal(t, 1, logins)
	assert.Equal(t, "PRM", got.MessageType)
	assert.Equal(t, []string{"33600000001"}, got.Recipient)
}

func TestSMSEnvoi_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_, _ = w.Write([]byte("UK1;SK1"))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"result":"KO","error":"Invalid sender"}`))
	}))
	defer srv.Close()

	s := NewSMSEnvoi("ops@example.fr", "secret", srv.Client())
	s.BaseURL = srv.URL

	res, err := s.Send(newContext(), Message{Recipient: "0601020304", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, Result{ErrorMessage: "Invalid sender"}, res)
}
