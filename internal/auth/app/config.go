package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SupabaseURL     string // Backend project URL; empty or placeholder selects demo mode
	SupabaseAnonKey string // Backend public API key; empty or placeholder selects demo mode
	SessionSecret   string // Optional: extra key material for sealing stored tokens

	BackendTimeout          time.Duration // Bound on every backend call (default: 10s)
	RealtimeEventsPerSecond float64       // Realtime delivery throttle (default: 10)

	AllowedOrigins []string // Browser origins for CORS and the events socket (default: http://localhost:3000)

	DatabaseFile         string        // Path to SQLite database file (default: ./scrum0.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	SessionRetention     time.Duration // Stored sessions expired for longer are deleted (default: 30 days)
}

// LoadConfig reads the environment. The backend location and key are read
// from SUPABASE_* first and fall back to the NEXT_PUBLIC_SUPABASE_* names
// used by the web frontend.
func LoadConfig() Config {
	return Config{
		SupabaseURL:     firstEnv("SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"),
		SupabaseAnonKey: firstEnv("SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),

		BackendTimeout:          getEnvDurationOrDefault("BACKEND_TIMEOUT", 10*time.Second),
		RealtimeEventsPerSecond: getEnvFloatOrDefault("REALTIME_EVENTS_PER_SECOND", 10),

		AllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DatabaseFile:         getEnvOrDefault("SCRUM0_DATABASE_FILE", "scrum0.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		SessionRetention:     getEnvDurationOrDefault("SESSION_RETENTION", 30*24*time.Hour),
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accepts "1h", "30m", "90s"...
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// ...or a bare number of minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
