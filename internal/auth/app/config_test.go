package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL",
		"SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY",
		"BACKEND_TIMEOUT", "CORS_ALLOWED_ORIGINS", "PORT",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Empty(t, cfg.SupabaseURL)
	require.Empty(t, cfg.SupabaseAnonKey)
	require.Equal(t, 10*time.Second, cfg.BackendTimeout)
	require.Equal(t, 10.0, cfg.RealtimeEventsPerSecond)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 30*24*time.Hour, cfg.SessionRetention)
}

func TestLoadConfigBackendFallback(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "server-key")
	t.Setenv("NEXT_PUBLIC_SUPABASE_ANON_KEY", "public-key")

	cfg := LoadConfig()
	require.Equal(t, "https://abc.supabase.co", cfg.SupabaseURL)
	require.Equal(t, "server-key", cfg.SupabaseAnonKey)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "250ms")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")
	t.Setenv("REALTIME_EVENTS_PER_SECOND", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("PORT", "not-a-port")

	cfg := LoadConfig()
	require.Equal(t, 250*time.Millisecond, cfg.BackendTimeout)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, 2.5, cfg.RealtimeEventsPerSecond)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 8080, cfg.Port)
}
