package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agoravox/agoravox/internal/config"
	"github.com/agoravox/agoravox/internal/faq"
	"github.com/agoravox/agoravox/internal/history"
	"github.com/agoravox/agoravox/internal/httpapi"
	"github.com/agoravox/agoravox/internal/observability"
	"github.com/agoravox/agoravox/internal/realtime"
	"github.com/agoravox/agoravox/internal/session"
	"github.com/agoravox/agoravox/internal/tools"
	"github.com/agoravox/agoravox/internal/voice"
)

// staticToken satisfies the credential fetcher in mock transport mode, where
// no remote service is involved.
type staticToken struct{}

func (staticToken) Fetch(context.Context) (string, error) { return "mock-token", nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer store.Close()

	var (
		dialer      realtime.Dialer
		credentials voice.CredentialFetcher
	)
	switch cfg.TransportMode {
	case "mock":
		dialer = realtime.NewMockDialer()
		credentials = staticToken{}
		log.Printf("realtime transport: mock")
	default:
		dialer = realtime.NewWebRTCDialer(cfg.RealtimeBaseURL, cfg.RealtimeModel, nil)
		credentials = realtime.NewCredentialClient(cfg.CredentialURL, nil)
		log.Printf("realtime transport: webrtc (%s)", cfg.RealtimeModel)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	usage := faq.NewUsageMeter(512)

	factory := func(sess *session.Session, emit func(msg any), uiHandler tools.Handler, source realtime.AudioSource) httpapi.Conversation {
		return voice.New(voice.Deps{
			Session:     sess,
			Sessions:    sessions,
			Credentials: credentials,
			Dialer:      dialer,
			Source:      source,
			Handler:     uiHandler,
			History:     store,
			Metrics:     metrics,
			Usage:       usage,
			Emit:        emit,
			Config: voice.Config{
				SystemPrompt:       cfg.SystemPrompt,
				DefaultVoice:       cfg.DefaultVoice,
				TranscriptionModel: cfg.TranscriptionModel,
				GreetingDelay:      cfg.GreetingDelay,
				ConnectTimeout:     cfg.ConnectTimeout,
				CacheEnabled:       cfg.CacheEnabled,
				HistoryLimit:       cfg.HistoryLimit,
			},
		})
	}

	api := httpapi.New(cfg, sessions, factory, usage, store, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
