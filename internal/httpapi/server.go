package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/agoravox/agoravox/internal/config"
	"github.com/agoravox/agoravox/internal/faq"
	"github.com/agoravox/agoravox/internal/history"
	"github.com/agoravox/agoravox/internal/observability"
	"github.com/agoravox/agoravox/internal/protocol"
	"github.com/agoravox/agoravox/internal/realtime"
	"github.com/agoravox/agoravox/internal/session"
	"github.com/agoravox/agoravox/internal/tools"
)

// Conversation is the per-connection voice session surface driven by the
// websocket read loop.
type Conversation interface {
	Connect(ctx context.Context, voice, systemPrompt string) error
	Disconnect()
	ToggleConversation(ctx context.Context, voice string) error
	ChangeVoice(voice string)
	ClearSession()
	SendMessage(text string)
}

// ConversationFactory builds one Conversation bound to a session. emit
// publishes UI-facing protocol messages, uiHandler receives the tool calls
// whose side effects the portal UI owns, and source yields the microphone
// frames the client streams over the websocket.
type ConversationFactory func(sess *session.Session, emit func(msg any), uiHandler tools.Handler, source realtime.AudioSource) Conversation

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	factory  ConversationFactory
	usage    *faq.UsageMeter
	store    history.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, factory ConversationFactory, usage *faq.UsageMeter, store history.Store, metrics *observability.Metrics) *Server {
	if store == nil {
		store = history.NoopStore{}
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		factory:  factory,
		usage:    usage,
		store:    store,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a voice session unless the
				// deployment explicitly opens the gate. Another website steering a
				// citizen's microphone session would be a real problem.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/session", s.handleCreateSession)
	r.Post("/v1/voice/session/{id}/end", s.handleEndSession)
	r.Get("/v1/voice/session/ws", s.handleSessionWS)
	r.Get("/v1/voice/usage", s.handleUsage)
	r.Get("/v1/voice/history", s.handleHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.Role) == "" {
		req.Role = "citizen"
	}
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = s.cfg.DefaultVoice
	}

	sess := s.sessions.Create(req.UserID, req.Role, req.Voice)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		Role:            sess.Role,
		Voice:           sess.Voice,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUsage(w http.ResponseWriter, _ *http.Request) {
	if s.usage == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "usage metering not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.usage.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.RecentMessages(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"messages": records,
	})
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.factory == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "conversation factory not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	emit := func(msg any) {
		select {
		case outbound <- msg:
		default:
			// Keep websocket writes single-threaded; drop if the queue saturates.
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.WSMessages.WithLabelValues("dropped", string(t)).Inc()
			}
		}
	}

	// The portal UI owns the side effects of host-application tools; the
	// gateway only forwards them.
	uiHandler := tools.HandlerFunc(func(_ context.Context, name string, args map[string]any) error {
		emit(protocol.ToolCall{
			Type:      protocol.TypeToolCall,
			SessionID: sessionID,
			Name:      name,
			Args:      args,
		})
		return nil
	})

	source := newWSAudioSource()
	conv := s.factory(sess, emit, uiHandler, source)
	defer conv.Disconnect()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.BinaryMessage {
			source.Push(data)
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			emit(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		_ = s.sessions.Touch(sessionID)
		s.dispatchClientMessage(ctx, conv, sessionID, parsed, emit)
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) dispatchClientMessage(ctx context.Context, conv Conversation, sessionID string, parsed any, emit func(msg any)) {
	switch msg := parsed.(type) {
	case protocol.ClientControl:
		switch msg.Action {
		case protocol.ActionConnect:
			if err := conv.Connect(ctx, msg.Voice, ""); err != nil {
				// The conversation already emitted a structured error event.
				return
			}
		case protocol.ActionDisconnect:
			conv.Disconnect()
		case protocol.ActionToggle:
			_ = conv.ToggleConversation(ctx, msg.Voice)
		case protocol.ActionClear:
			conv.ClearSession()
		case protocol.ActionVoice:
			conv.ChangeVoice(msg.Voice)
		default:
			emit(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "unknown_action",
				Source:    "gateway",
				Retryable: false,
				Detail:    msg.Action,
			})
		}
	case protocol.ClientText:
		conv.SendMessage(msg.Text)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientControl:
		return m.Type, true
	case protocol.ClientText:
		return m.Type, true
	case protocol.SessionState:
		return m.Type, true
	case protocol.AssistantMessage:
		return m.Type, true
	case protocol.AudioLevel:
		return m.Type, true
	case protocol.ToolCall:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
