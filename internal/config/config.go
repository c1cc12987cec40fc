package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice gateway service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	TransportMode      string
	RealtimeBaseURL    string
	RealtimeModel      string
	TranscriptionModel string
	CredentialURL      string

	DefaultVoice   string
	SystemPrompt   string
	GreetingDelay  time.Duration
	ConnectTimeout time.Duration

	CacheEnabled   bool
	TargetLanguage string

	HistoryLimit int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "agoravox"),
		AllowAnyOrigin:   false,
		TransportMode:    strings.ToLower(envOrDefault("VOICE_TRANSPORT", "webrtc")),
		RealtimeBaseURL:  envOrDefault("REALTIME_BASE_URL", "https://api.openai.com/v1/realtime"),
		RealtimeModel:    envOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		// Transcription runs server-side on the realtime session; whisper keeps it cheap.
		TranscriptionModel:       envOrDefault("REALTIME_TRANSCRIPTION_MODEL", "whisper-1"),
		CredentialURL:            stringsTrimSpace("REALTIME_CREDENTIAL_URL"),
		DefaultVoice:             envOrDefault("VOICE_DEFAULT", "alloy"),
		SystemPrompt:             envOrDefault("VOICE_SYSTEM_PROMPT", defaultSystemPrompt),
		GreetingDelay:            500 * time.Millisecond,
		ConnectTimeout:           15 * time.Second,
		CacheEnabled:             true,
		TargetLanguage:           envOrDefault("VOICE_TARGET_LANGUAGE", "fr"),
		HistoryLimit:             200,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GreetingDelay, err = durationFromEnv("VOICE_GREETING_DELAY", cfg.GreetingDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.ConnectTimeout, err = durationFromEnv("VOICE_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("VOICE_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheEnabled, err = boolFromEnv("VOICE_CACHE_ENABLED", cfg.CacheEnabled)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.GreetingDelay < 0 {
		return Config{}, fmt.Errorf("VOICE_GREETING_DELAY must not be negative")
	}
	if cfg.ConnectTimeout < time.Second {
		return Config{}, fmt.Errorf("VOICE_CONNECT_TIMEOUT must be at least 1s")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("VOICE_HISTORY_LIMIT must be positive")
	}
	if strings.TrimSpace(cfg.RealtimeBaseURL) == "" {
		return Config{}, fmt.Errorf("REALTIME_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.RealtimeModel) == "" {
		return Config{}, fmt.Errorf("REALTIME_MODEL must not be empty")
	}
	switch cfg.TransportMode {
	case "webrtc":
		if strings.TrimSpace(cfg.CredentialURL) == "" {
			return Config{}, fmt.Errorf("REALTIME_CREDENTIAL_URL is required")
		}
	case "mock":
		// Runs without a remote service; used for local development and smoke tests.
	default:
		return Config{}, fmt.Errorf("invalid VOICE_TRANSPORT: %q (expected webrtc|mock)", cfg.TransportMode)
	}

	return cfg, nil
}

const defaultSystemPrompt = "Tu es l'assistante vocale du portail parlementaire. " +
	"Réponds en français, de façon brève et factuelle, et utilise les outils mis à ta disposition " +
	"pour naviguer, générer des documents ou contacter un service."

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
