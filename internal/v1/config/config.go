package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Server
	Port        string
	TLSCertFile string
	TLSKeyFile  string

	// Rooms
	MaxRooms     int
	CleanupGrace time.Duration

	// Optional variables with defaults
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Redis room event feed
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits
	RateLimitWsIP  string
	ChatRatePerSec int
	ChatRateBurst  int

	// Tracing
	OtelEnabled       bool
	OtelCollectorAddr string
}

// Defaults for the room engine.
const (
	DefaultPort         = "3000"
	DefaultMaxRooms     = 5
	DefaultCleanupGrace = 60 * time.Second
)

// ValidateEnv reads and validates all environment variables and returns a
// Config. Every invalid variable is reported, not just the first one.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Optional: PORT (defaults to 3000)
	cfg.Port = getEnvOrDefault("PORT", DefaultPort)
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	// Optional: TLS_CERT_FILE / TLS_KEY_FILE (must be set together)
	cfg.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errors = append(errors, "TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	// Optional: MAX_ROOMS (defaults to 5)
	maxRoomsStr := getEnvOrDefault("MAX_ROOMS", strconv.Itoa(DefaultMaxRooms))
	if maxRooms, err := strconv.Atoi(maxRoomsStr); err != nil || maxRooms < 1 {
		errors = append(errors, fmt.Sprintf("MAX_ROOMS must be a positive integer (got '%s')", maxRoomsStr))
	} else {
		cfg.MaxRooms = maxRooms
	}

	// Optional: ROOM_CLEANUP_GRACE (defaults to 60s)
	graceStr := getEnvOrDefault("ROOM_CLEANUP_GRACE", DefaultCleanupGrace.String())
	if grace, err := time.ParseDuration(graceStr); err != nil || grace <= 0 {
		errors = append(errors, fmt.Sprintf("ROOM_CLEANUP_GRACE must be a positive duration like '60s' (got '%s')", graceStr))
	} else {
		cfg.CleanupGrace = grace
	}

	// Conditional: REDIS_ADDR (used if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate limits (M = minute; format from ulule/limiter)
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "60-M")

	// Per-connection chat flood budget (messages per second + burst)
	chatRateStr := getEnvOrDefault("CHAT_RATE_PER_SEC", "5")
	if chatRate, err := strconv.Atoi(chatRateStr); err != nil || chatRate < 1 {
		errors = append(errors, fmt.Sprintf("CHAT_RATE_PER_SEC must be a positive integer (got '%s')", chatRateStr))
	} else {
		cfg.ChatRatePerSec = chatRate
	}
	chatBurstStr := getEnvOrDefault("CHAT_RATE_BURST", "10")
	if chatBurst, err := strconv.Atoi(chatBurstStr); err != nil || chatBurst < 1 {
		errors = append(errors, fmt.Sprintf("CHAT_RATE_BURST must be a positive integer (got '%s')", chatBurstStr))
	} else {
		cfg.ChatRateBurst = chatBurst
	}

	// Conditional: OTEL_COLLECTOR_ADDR (used if OTEL_ENABLED=true)
	cfg.OtelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	if cfg.OtelEnabled {
		cfg.OtelCollectorAddr = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
		if !isValidHostPort(cfg.OtelCollectorAddr) {
			errors = append(errors, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OtelCollectorAddr))
		}
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	// Log validated configuration (with secrets redacted)
	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"tls", cfg.TLSCertFile != "",
		"max_rooms", cfg.MaxRooms,
		"cleanup_grace", cfg.CleanupGrace.String(),
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"redis_password", redactSecret(cfg.RedisPassword),
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
		"chat_rate", fmt.Sprintf("%d/s burst %d", cfg.ChatRatePerSec, cfg.ChatRateBurst),
		"otel_enabled", cfg.OtelEnabled,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
