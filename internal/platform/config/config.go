// Package config builds process configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// environment variables (loaded from .env by main when present).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "kopguard/pkg/platform/strings"
)

// LimitRule is one fixed-window rate limit: at most MaxRequests per Window.
type LimitRule struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimits holds the per-context limit table.
type RateLimits struct {
	General LimitRule
	Auth    LimitRule
	Admin   LimitRule
	Upload  LimitRule
}

// Audit holds audit-logger configuration.
type Audit struct {
	Enabled         bool
	SensitiveFields []string
	RetentionDays   int
	WebhookURL      string
	WebhookTimeout  time.Duration
}

// Kafka holds the optional security-alert fan-out sink configuration.
// Empty Brokers disables the sink.
type Kafka struct {
	Brokers    []string
	AlertTopic string
}

// Config is the full server configuration.
type Config struct {
	Addr          string
	Environment   string
	LogLevel      string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string
	RateLimits    RateLimits
	Audit         Audit
	Kafka         Kafka
}

// defaultSensitiveFields covers the credential and PII keys that must never
// reach the audit store. NIK is the Indonesian national identity number.
var defaultSensitiveFields = []string{
	"password", "token", "secret", "authorization", "nik", "pin", "card_number",
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envString("KOPGUARD_ADDR", ":8080"),
		Environment:   envString("KOPGUARD_ENV", "development"),
		LogLevel:      envString("KOPGUARD_LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RateLimits: RateLimits{
			General: limitRule("RATELIMIT_GENERAL", 100, time.Minute),
			Auth:    limitRule("RATELIMIT_AUTH", 5, time.Minute),
			Admin:   limitRule("RATELIMIT_ADMIN", 30, time.Minute),
			Upload:  limitRule("RATELIMIT_UPLOAD", 10, time.Minute),
		},
		Audit: Audit{
			Enabled:         envBool("AUDIT_ENABLED", true),
			SensitiveFields: sensitiveFields(),
			RetentionDays:   envInt("AUDIT_RETENTION_DAYS", 90),
			WebhookURL:      os.Getenv("SECURITY_WEBHOOK_URL"),
			WebhookTimeout:  envDuration("SECURITY_WEBHOOK_TIMEOUT", 5*time.Second),
		},
		Kafka: Kafka{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AlertTopic: envString("KAFKA_ALERT_TOPIC", "kopguard.security-alerts"),
		},
	}
}

// IsProduction reports whether the server runs with production semantics
// (no console echo of audit entries, strict webhook requirements).
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func sensitiveFields() []string {
	raw := os.Getenv("AUDIT_SENSITIVE_FIELDS")
	if raw == "" {
		return defaultSensitiveFields
	}
	return pstrings.DedupeAndTrimLower(strings.Split(raw, ","))
}

func limitRule(prefix string, defMax int, defWindow time.Duration) LimitRule {
	return LimitRule{
		MaxRequests: envInt(prefix+"_MAX", defMax),
		Window:      envDuration(prefix+"_WINDOW", defWindow),
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(raw, ","))
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
