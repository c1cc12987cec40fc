package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_CREDENTIAL_URL", "http://localhost:3000/api/realtime/token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.TargetLanguage != "fr" {
		t.Fatalf("TargetLanguage = %q, want %q", cfg.TargetLanguage, "fr")
	}
	if !cfg.CacheEnabled {
		t.Fatalf("CacheEnabled = false, want true by default")
	}
	if cfg.GreetingDelay != 500*time.Millisecond {
		t.Fatalf("GreetingDelay = %v, want 500ms", cfg.GreetingDelay)
	}
}

func TestLoadRequiresCredentialURL(t *testing.T) {
	setCoreEnvEmpty(t)

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing REALTIME_CREDENTIAL_URL error")
	}
}

func TestLoadMockTransportSkipsCredentialURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOICE_TRANSPORT", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TransportMode != "mock" {
		t.Fatalf("TransportMode = %q, want mock", cfg.TransportMode)
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_CREDENTIAL_URL", "http://localhost:3000/api/realtime/token")
	t.Setenv("VOICE_TRANSPORT", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want transport validation error")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_CREDENTIAL_URL", "http://localhost:3000/api/realtime/token")
	t.Setenv("VOICE_GREETING_DELAY", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want duration parse error")
	}
}

func TestLoadRejectsTinyInactivityTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_CREDENTIAL_URL", "http://localhost:3000/api/realtime/token")
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want inactivity timeout validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"REALTIME_BASE_URL",
		"REALTIME_MODEL",
		"REALTIME_TRANSCRIPTION_MODEL",
		"REALTIME_CREDENTIAL_URL",
		"VOICE_TRANSPORT",
		"VOICE_DEFAULT",
		"VOICE_SYSTEM_PROMPT",
		"VOICE_GREETING_DELAY",
		"VOICE_CONNECT_TIMEOUT",
		"VOICE_CACHE_ENABLED",
		"VOICE_TARGET_LANGUAGE",
		"VOICE_HISTORY_LIMIT",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
