package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DBDriver string
	DBPath   string
	DBDSN    string

	SMSProvider      string
	SMSFactorToken   string
	SpotHitAPIKey    string
	SMSEnvoiEmail    string
	SMSEnvoiPassword string
	SMSSender        string
	SMSDelay         time.Duration

	VapiAPIKey        string
	VapiPhoneNumberID string
	VapiAssistantID   string
	VapiBaseURL       string

	VoicePollInterval time.Duration
	VoiceCallTimeout  time.Duration
	VoiceCallDelay    time.Duration

	DefaultCountryCode string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBPath:   getEnv("DB_PATH", "file::memory:?cache=shared"),
		DBDSN:    getEnv("DB_DSN", ""),

		SMSProvider:      getEnv("SMS_PROVIDER", "smsfactor"),
		SMSFactorToken:   getEnv("SMS_FACTOR_TOKEN", ""),
		SpotHitAPIKey:    getEnv("SPOTHIT_API_KEY", ""),
		SMSEnvoiEmail:    getEnv("SMSENVOI_EMAIL", ""),
		SMSEnvoiPassword: getEnv("SMSENVOI_PASSWORD", ""),
		SMSSender:        getEnv("SMS_SENDER", "EFFY PART"),
		SMSDelay:         getEnvMillis("SMS_DELAY_MS", 500*time.Millisecond),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiPhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		VapiAssistantID:   getEnv("VAPI_ASSISTANT_ID", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),

		VoicePollInterval: getEnvMillis("VOICE_POLL_INTERVAL_MS", 3*time.Second),
		VoiceCallTimeout:  getEnvSeconds("VOICE_CALL_TIMEOUT_S", 5*time.Minute),
		VoiceCallDelay:    getEnvMillis("VOICE_CALL_DELAY_MS", 5*time.Second),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "+33"),
	}
}

// MissingSMS returns the names of the credentials the selected SMS provider lacks.
func (c *Config) MissingSMS() []string {
	var missing []string
	switch c.SMSProvider {
	case "spothit":
		if c.SpotHitAPIKey == "" {
			missing = append(missing, "SPOTHIT_API_KEY")
		}
	case "smsenvoi":
		if c.SMSEnvoiEmail == "" {
			missing = append(missing, "SMSENVOI_EMAIL")
		}
		if c.SMSEnvoiPassword == "" {
			missing = append(missing, "SMSENVOI_PASSWORD")
		}
	default:
		if c.SMSFactorToken == "" {
			missing = append(missing, "SMS_FACTOR_TOKEN")
		}
	}
	return missing
}

// MissingVoice returns the names of the absent Vapi settings.
func (c *Config) MissingVoice() []string {
	var missing []string
	if c.VapiAPIKey == "" {
		missing = append(missing, "VAPI_API_KEY")
	}
	if c.VapiPhoneNumberID == "" {
		missing = append(missing, "VAPI_PHONE_NUMBER_ID")
	}
	if c.VapiAssistantID == "" {
		missing = append(missing, "VAPI_ASSISTANT_ID")
	}
	return missing
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid value %q for %s, using %d", value, key, fallback)
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(fallback/time.Millisecond))) * time.Millisecond
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(fallback/time.Second))) * time.Second
}
