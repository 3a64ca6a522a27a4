package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration for both the terminal client and
// the development portal backend.
type Config struct {
	Env      string
	LogLevel string

	// Portal client
	PortalBaseURL    string
	ConversationID   string
	CSRFToken        string
	CSRFPagePath     string
	RequestTimeout   time.Duration
	LinkSuccessDelay time.Duration
	DefaultPatientID string
	CheckoutMode     string
	// FamilyMembersFile is a JSON array of the account's family members,
	// offered when a patient selector arrives without patients.
	FamilyMembersFile string

	// Conversation snapshot cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SnapshotTTL   time.Duration

	// Development portal backend
	Port              string
	PublicBaseURL     string
	AllowedOrigins    []string
	CSRFSecret        string
	AllowFakePayments bool
	PaymentKeyID      string
	PaymentKeySecret  string
	Currency          string
	DatabaseURL       string
	AutoMigrate       bool
	OTPMaxSends       int
	OTPMaxAttempts    int
	OTPWindow         time.Duration
	FixedOTP          string
	FamilyRatePerSec  float64
	FamilyRateBurst   int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PortalBaseURL:     strings.TrimRight(getEnv("PORTAL_BASE_URL", "http://localhost:8080"), "/"),
		ConversationID:    getEnv("CONVERSATION_ID", ""),
		CSRFToken:         getEnv("CSRF_TOKEN", ""),
		CSRFPagePath:      getEnv("CSRF_PAGE_PATH", "/booking/{id}/chat"),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		LinkSuccessDelay:  getEnvAsDuration("LINK_SUCCESS_DELAY", 1500*time.Millisecond),
		DefaultPatientID:  getEnv("DEFAULT_PATIENT_ID", ""),
		CheckoutMode:      getEnv("CHECKOUT_MODE", "auto"),
		FamilyMembersFile: getEnv("FAMILY_MEMBERS_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SnapshotTTL:   getEnvAsDuration("SNAPSHOT_TTL", 24*time.Hour),

		Port:              getEnv("PORT", "8080"),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", ""),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS"),
		CSRFSecret:        getEnv("CSRF_SECRET", ""),
		AllowFakePayments: getEnvAsBool("ALLOW_FAKE_PAYMENTS", true),
		PaymentKeyID:      getEnv("PAYMENT_KEY_ID", "rzp_test_portal"),
		PaymentKeySecret:  getEnv("PAYMENT_KEY_SECRET", ""),
		Currency:          getEnv("PAYMENT_CURRENCY", "INR"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AutoMigrate:       getEnvAsBool("AUTO_MIGRATE", true),
		OTPMaxSends:       getEnvAsInt("OTP_MAX_SENDS", 3),
		OTPMaxAttempts:    getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		OTPWindow:         getEnvAsDuration("OTP_WINDOW", 15*time.Minute),
		FixedOTP:          getEnv("FIXED_OTP", ""),
		FamilyRatePerSec:  getEnvAsFloat("FAMILY_RATE_PER_SEC", 2),
		FamilyRateBurst:   getEnvAsInt("FAMILY_RATE_BURST", 10),
	}
}

// PagePath expands the CSRF page template for a conversation.
func (c *Config) PagePath(conversationID string) string {
	return strings.ReplaceAll(c.CSRFPagePath, "{id}", conversationID)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
