package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SMS_DELAY_MS", "")
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "EFFY PART", cfg.SMSSender)
	assert.Equal(t, 500*time.Millisecond, cfg.SMSDelay)
	assert.Equal(t, 3*time.Second, cfg.VoicePollInterval)
	assert.Equal(t, 5*time.Minute, cfg.VoiceCallTimeout)
	assert.Equal(t, 5*time.Second, cfg.VoiceCallDelay)
	assert.Equal(t, "+33", cfg.DefaultCountryCode)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SMS_DELAY_MS", "20")
	t.Setenv("VOICE_CALL_TIMEOUT_S", "60")
	t.Setenv("SMS_PROVIDER", "spothit")

	cfg := LoadConfig()
	assert.Equal(t, 20*time.Millisecond, cfg.SMSDelay)
	assert.Equal(t, time.Minute, cfg.VoiceCallTimeout)
	assert.Equal(t, "spothit", cfg.SMSProvider)
}

func TestMissingCredentials(t *testing.T) {
	cfg := &Config{SMSProvider: "smsenvoi", SMSEnvoiEmail: "ops@example.fr"}
	assert.Equal(t, []string{"SMSENVOI_PASSWORD"}, cfg.MissingSMS())

	cfg = &Config{SMSProvider: "smsfactor", SMSFactorToken: "tok"}
	assert.Empty(t, cfg.MissingSMS())

	cfg = &Config{VapiAPIKey: "key"}
	assert.Equal(t, []string{"VAPI_PHONE_NUMBER_ID", "VAPI_ASSISTANT_ID"}, cfg.MissingVoice())
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)

	logger, err := NewLogger(&Config{LogLevel: "debug", LogFormat: "console"})
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
