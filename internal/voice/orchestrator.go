package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agoravox/agoravox/internal/command"
	"github.com/agoravox/agoravox/internal/faq"
	"github.com/agoravox/agoravox/internal/history"
	"github.com/agoravox/agoravox/internal/noise"
	"github.com/agoravox/agoravox/internal/observability"
	"github.com/agoravox/agoravox/internal/policy"
	"github.com/agoravox/agoravox/internal/protocol"
	"github.com/agoravox/agoravox/internal/realtime"
	"github.com/agoravox/agoravox/internal/reliability"
	"github.com/agoravox/agoravox/internal/session"
	"github.com/agoravox/agoravox/internal/tools"
)

// CredentialFetcher obtains the ephemeral token for one connect attempt.
type CredentialFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Config carries the per-session tuning the orchestrator needs.
type Config struct {
	SystemPrompt       string
	DefaultVoice       string
	TranscriptionModel string
	GreetingDelay      time.Duration
	ConnectTimeout     time.Duration
	CacheEnabled       bool
	HistoryLimit       int
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Session     *session.Session
	Sessions    *session.Manager
	Credentials CredentialFetcher
	Dialer      realtime.Dialer
	Source      realtime.AudioSource
	Handler     tools.Handler
	History     history.Store
	Metrics     *observability.Metrics
	Usage       *faq.UsageMeter
	// Emit publishes UI-facing protocol messages; it must never block for long.
	Emit   func(msg any)
	Config Config
}

const (
	levelPublishInterval = 100 * time.Millisecond
	greetingInstructions = "Salue brièvement l'utilisateur en français et propose ton aide."
	historySaveTimeout   = 2 * time.Second
)

// Orchestrator drives one voice conversation: transport lifecycle, the
// control-channel state machine, the utterance interception pipeline and tool
// dispatch. One orchestrator owns at most one live transport; all protocol
// transitions happen on its single event loop goroutine.
type Orchestrator struct {
	cfg     Config
	sess    *session.Session
	sessmgr *session.Manager
	creds   CredentialFetcher
	dialer  realtime.Dialer
	source  realtime.AudioSource
	store   history.Store
	metrics *observability.Metrics
	usage   *faq.UsageMeter
	emit    func(msg any)

	filter   *noise.Filter
	commands *command.Router
	faqs     *faq.Router
	dispatch *tools.Dispatcher

	mu        sync.Mutex
	gen       int64
	state     session.State
	voice     string
	transport realtime.Transport
	micOK     bool
	messages  []session.Message
}

func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:      deps.Config,
		sess:     deps.Session,
		sessmgr:  deps.Sessions,
		creds:    deps.Credentials,
		dialer:   deps.Dialer,
		source:   deps.Source,
		store:    deps.History,
		metrics:  deps.Metrics,
		usage:    deps.Usage,
		emit:     deps.Emit,
		filter:   noise.NewFilter(noise.French),
		commands: command.NewRouter(),
		faqs:     faq.NewRouter(),
		state:    session.StateIdle,
		voice:    deps.Config.DefaultVoice,
	}
	if deps.Session.Voice != "" {
		o.voice = deps.Session.Voice
	}
	if o.cfg.ConnectTimeout <= 0 {
		o.cfg.ConnectTimeout = 15 * time.Second
	}
	if o.emit == nil {
		o.emit = func(any) {}
	}
	if o.store == nil {
		o.store = history.NoopStore{}
	}
	role := policy.ParseRole(deps.Session.Role)
	o.dispatch = tools.NewDispatcher(o, deps.Handler, role, deps.Metrics, o.notice)
	return o
}

// Connect establishes the transport and starts the event loop. Calling it
// while a transport exists is a no-op. A Disconnect racing the connect
// sequence wins: the generation counter is checked after every suspension
// point and a superseded attempt tears down whatever it created.
func (o *Orchestrator) Connect(ctx context.Context, voice, systemPrompt string) error {
	o.mu.Lock()
	if o.transport != nil || o.state == session.StateConnecting {
		o.mu.Unlock()
		return nil
	}
	o.gen++
	gen := o.gen
	if strings.TrimSpace(voice) != "" {
		o.voice = strings.TrimSpace(voice)
	}
	if strings.TrimSpace(systemPrompt) != "" {
		o.cfg.SystemPrompt = systemPrompt
	}
	o.state = session.StateConnecting
	o.mu.Unlock()
	o.emitState()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	frames, err := o.source.Start(ctx)
	if err != nil {
		o.mu.Lock()
		o.micOK = false
		o.mu.Unlock()
		return o.failConnect(gen, "microphone", err)
	}
	o.mu.Lock()
	o.micOK = true
	current := o.gen == gen
	o.mu.Unlock()
	if !current {
		o.source.Stop()
		return nil
	}

	token, err := o.creds.Fetch(ctx)
	if err != nil {
		o.source.Stop()
		return o.failConnect(gen, "credentials", err)
	}
	if !o.isCurrent(gen) {
		o.source.Stop()
		return nil
	}

	transport, err := o.dialer.Dial(ctx, token, frames)
	if err != nil {
		o.source.Stop()
		return o.failConnect(gen, "handshake", err)
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		_ = transport.Close()
		o.source.Stop()
		return nil
	}
	o.transport = transport
	o.mu.Unlock()

	go o.run(gen, transport)
	return nil
}

// Disconnect tears down the transport and returns the session to idle. It is
// idempotent and safe to call concurrently with an in-flight Connect.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	transport := o.transport
	wasIdle := transport == nil && o.state == session.StateIdle
	o.gen++
	o.transport = nil
	o.state = session.StateIdle
	o.mu.Unlock()

	if wasIdle {
		return
	}
	if transport != nil {
		_ = transport.Close()
	}
	o.source.Stop()
	o.emitState()
	o.emit(protocol.AudioLevel{Type: protocol.TypeAudioLevel, SessionID: o.sess.ID, Level: 0})
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues("disconnected").Inc()
	}
}

// SendMessage injects typed text into the live conversation and asks the
// remote model to respond to it.
func (o *Orchestrator) SendMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.mu.Lock()
	transport := o.transport
	o.mu.Unlock()
	if transport == nil {
		o.notice("La conversation vocale n'est pas active.")
		return
	}
	o.appendMessage(session.RoleUser, text)
	o.send(transport, realtime.NewUserText(text))
	o.send(transport, realtime.ResponseCreate{Type: realtime.TypeResponseCreate})
}

// ChangeVoice switches the voice identity. When connected, the session
// configuration is re-sent so the remote service adopts it without a
// reconnect. An empty voice cycles to the next known identity.
func (o *Orchestrator) ChangeVoice(voice string) {
	o.mu.Lock()
	if strings.TrimSpace(voice) == "" {
		voice = nextVoice(o.voice)
	}
	o.voice = strings.TrimSpace(voice)
	transport := o.transport
	o.mu.Unlock()

	if o.sessmgr != nil {
		_ = o.sessmgr.SetVoice(o.sess.ID, voice)
	}
	if transport != nil {
		o.sendSessionUpdate(transport)
	}
	o.emitState()
}

// ClearSession drops the displayed conversation history. The live transport,
// if any, is untouched.
func (o *Orchestrator) ClearSession() {
	o.mu.Lock()
	o.messages = nil
	o.mu.Unlock()
	o.emit(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: o.sess.ID,
		Code:      "session_cleared",
	})
}

// ToggleConversation connects when idle and disconnects otherwise.
func (o *Orchestrator) ToggleConversation(ctx context.Context, voice string) error {
	if o.IsConnected() {
		o.Disconnect()
		return nil
	}
	return o.Connect(ctx, voice, "")
}

func (o *Orchestrator) State() session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) IsConnected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transport != nil
}

func (o *Orchestrator) CurrentVoice() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voice
}

// MicrophoneGranted reports whether capture consent was obtained for the
// current or most recent connect attempt.
func (o *Orchestrator) MicrophoneGranted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.micOK
}

func (o *Orchestrator) AudioLevel() float64 {
	o.mu.Lock()
	transport := o.transport
	o.mu.Unlock()
	if transport == nil {
		return 0
	}
	return transport.Level()
}

func (o *Orchestrator) Messages() []session.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]session.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// run is the single event loop for one established transport. Every protocol
// transition happens here, in arrival order; no two transitions interleave.
func (o *Orchestrator) run(gen int64, transport realtime.Transport) {
	select {
	case <-transport.Opened():
	case <-transport.Done():
		o.transportLost(gen)
		return
	case <-time.After(o.cfg.ConnectTimeout):
		_ = transport.Close()
		_ = o.failConnect(gen, "handshake", errors.New("handshake timed out waiting for control channel"))
		return
	}
	if !o.isCurrent(gen) {
		return
	}

	o.sendSessionUpdate(transport)
	o.setState(gen, session.StateListening)
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues("connected").Inc()
	}

	// The assistant greets first, deterministically, instead of waiting on
	// ambiguous turn-taking.
	greet := time.NewTimer(o.cfg.GreetingDelay)
	defer greet.Stop()
	levels := time.NewTicker(levelPublishInterval)
	defer levels.Stop()

	for {
		select {
		case <-greet.C:
			o.send(transport, realtime.ResponseCreate{
				Type:     realtime.TypeResponseCreate,
				Response: &realtime.ResponseParams{Instructions: greetingInstructions},
			})
		case <-levels.C:
			o.emit(protocol.AudioLevel{
				Type:      protocol.TypeAudioLevel,
				SessionID: o.sess.ID,
				Level:     transport.Level(),
			})
		case raw, ok := <-transport.Events():
			if !ok {
				o.transportLost(gen)
				return
			}
			o.handleEvent(gen, transport, raw)
			if !o.isCurrent(gen) {
				return
			}
		case <-transport.Done():
			o.transportLost(gen)
			return
		}
	}
}

func (o *Orchestrator) handleEvent(gen int64, transport realtime.Transport, raw []byte) {
	evt, err := realtime.ParseServerEvent(raw)
	if err != nil {
		if !errors.Is(err, realtime.ErrUnsupportedType) {
			log.Printf("voice: dropping malformed event: %v", err)
		}
		return
	}

	switch e := evt.(type) {
	case realtime.SpeechStarted:
		o.setState(gen, session.StateListening)
	case realtime.ResponseAudioDelta:
		o.setState(gen, session.StateSpeaking)
	case realtime.TranscriptionCompleted:
		o.routeTranscript(gen, transport, e.Transcript)
	case realtime.ResponseDone:
		o.setState(gen, session.StateListening)
		for _, item := range e.Response.Output {
			if item.Type != "function_call" {
				continue
			}
			call := tools.ParseCall(item.Name, item.Arguments)
			o.dispatch.Dispatch(context.Background(), call)
			if !o.isCurrent(gen) {
				// stop_conversation tore the session down mid-scan.
				return
			}
			if item.CallID != "" {
				o.send(transport, realtime.NewToolOutput(item.CallID, `{"status":"ok"}`))
			}
		}
	case realtime.ConversationItemCreated:
		if e.Item.Role == session.RoleAssistant {
			if text := realtime.TextOf(e.Item); text != "" {
				o.appendMessage(session.RoleAssistant, text)
			}
		}
	}
}

// routeTranscript runs the three-tier interception pipeline on one completed
// user utterance: noise filter, local command table, FAQ cache, and only then
// the remote completion.
func (o *Orchestrator) routeTranscript(gen int64, transport realtime.Transport, transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return
	}

	if o.filter.IsNoise(transcript) {
		o.cancelResponse(transport, "noise")
		return
	}

	o.appendMessage(session.RoleUser, transcript)

	if match, ok := o.commands.Match(transcript); ok {
		o.cancelResponse(transport, "local_command")
		o.recordDecision(faq.Decision{Tier: faq.TierLocal})
		if match.Response != "" {
			o.appendMessage(session.RoleAssistant, match.Response)
		}
		o.dispatch.Dispatch(context.Background(), match.ToolCall)
		return
	}

	role := policy.ParseRole(o.sess.Role)
	decision := o.faqs.Route(transcript, role, o.cfg.CacheEnabled)
	if decision.Tier == faq.TierCached {
		o.cancelResponse(transport, "cache_hit")
		o.recordDecision(decision)
		o.appendMessage(session.RoleAssistant, decision.Answer)
		return
	}

	// Remote tier: the pending response proceeds; we only meter it.
	o.recordDecision(decision)
	o.setState(gen, session.StateThinking)
}

// cancelResponse asks the remote service to drop the pending completion.
// Fire-and-forget: a cancel with nothing in flight is a protocol no-op.
func (o *Orchestrator) cancelResponse(transport realtime.Transport, reason string) {
	o.send(transport, realtime.ResponseCancel{Type: realtime.TypeResponseCancel})
	if o.metrics != nil {
		o.metrics.ResponseCancels.WithLabelValues(reason).Inc()
	}
}

func (o *Orchestrator) recordDecision(d faq.Decision) {
	if o.usage != nil {
		o.usage.Record(d)
	}
	if o.metrics != nil {
		o.metrics.ObserveRouting(string(d.Tier), d.EstimatedCostCents)
	}
}

func (o *Orchestrator) sendSessionUpdate(transport realtime.Transport) {
	defs := tools.Definitions()
	rawDefs := make([]json.RawMessage, 0, len(defs))
	for _, def := range defs {
		b, err := json.Marshal(def)
		if err != nil {
			log.Printf("voice: encode tool definition %q: %v", def.Name, err)
			continue
		}
		rawDefs = append(rawDefs, b)
	}

	o.mu.Lock()
	voice := o.voice
	prompt := o.cfg.SystemPrompt
	o.mu.Unlock()

	o.send(transport, realtime.SessionUpdate{
		Type: realtime.TypeSessionUpdate,
		Session: realtime.SessionConfig{
			Voice:                   voice,
			Instructions:            prompt,
			InputAudioTranscription: &realtime.TranscriptionModel{Model: o.cfg.TranscriptionModel},
			Tools:                   rawDefs,
			ToolChoice:              "auto",
		},
	})
}

func (o *Orchestrator) send(transport realtime.Transport, v any) {
	if err := transport.Send(v); err != nil && !errors.Is(err, realtime.ErrTransportClosed) {
		log.Printf("voice: control channel send failed: %v", err)
	}
}

func (o *Orchestrator) appendMessage(role, content string) {
	msg := session.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	if o.cfg.HistoryLimit > 0 && len(o.messages) > o.cfg.HistoryLimit {
		o.messages = o.messages[len(o.messages)-o.cfg.HistoryLimit:]
	}
	o.mu.Unlock()

	o.emit(protocol.AssistantMessage{
		Type:      protocol.TypeAssistantMessage,
		SessionID: o.sess.ID,
		MessageID: msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		TSMs:      msg.Timestamp.UnixMilli(),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		err := o.store.SaveMessage(ctx, history.Record{
			ID:        msg.ID,
			SessionID: o.sess.ID,
			UserID:    o.sess.UserID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.Timestamp,
		})
		if err != nil {
			log.Printf("voice: history save failed: %v", err)
		}
	}()
}

// notice surfaces a user-visible assistant notice without involving the
// remote model.
func (o *Orchestrator) notice(text string) {
	o.appendMessage(session.RoleAssistant, text)
}

func (o *Orchestrator) setState(gen int64, st session.State) {
	o.mu.Lock()
	if o.gen != gen || o.state == st {
		o.mu.Unlock()
		return
	}
	o.state = st
	o.mu.Unlock()
	o.emitState()
}

func (o *Orchestrator) emitState() {
	o.mu.Lock()
	st := o.state
	voice := o.voice
	connected := o.transport != nil
	o.mu.Unlock()
	o.emit(protocol.SessionState{
		Type:      protocol.TypeSessionState,
		SessionID: o.sess.ID,
		State:     string(st),
		Voice:     voice,
		Connected: connected,
	})
}

func (o *Orchestrator) isCurrent(gen int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == gen
}

// failConnect aborts a connect attempt: back to idle, error surfaced, no
// automatic retry (a silent reconnect would silently replay the greeting).
func (o *Orchestrator) failConnect(gen int64, stage string, err error) error {
	o.mu.Lock()
	if o.gen != gen {
		// A Disconnect already superseded this attempt.
		o.mu.Unlock()
		return nil
	}
	o.transport = nil
	o.state = session.StateIdle
	o.mu.Unlock()

	code, retryable := reliability.ClassifyConnectError(err)
	log.Printf("voice: connect failed at %s: %v", stage, err)
	if o.metrics != nil {
		o.metrics.TransportErrors.WithLabelValues(stage, code).Inc()
	}
	o.emitState()
	o.emit(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: o.sess.ID,
		Code:      code,
		Source:    stage,
		Retryable: retryable,
		Detail:    err.Error(),
	})
	return err
}

// transportLost handles the remote side dropping an established session.
func (o *Orchestrator) transportLost(gen int64) {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return
	}
	o.gen++
	transport := o.transport
	o.transport = nil
	o.state = session.StateIdle
	o.mu.Unlock()

	if transport != nil {
		_ = transport.Close()
	}
	o.source.Stop()
	if o.metrics != nil {
		o.metrics.TransportErrors.WithLabelValues("session", "connection_lost").Inc()
	}
	o.emitState()
	o.emit(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: o.sess.ID,
		Code:      "connection_lost",
		Source:    "session",
		Retryable: true,
		Detail:    "realtime transport closed",
	})
}

var knownVoices = []string{"alloy", "echo", "shimmer", "verse"}

func nextVoice(current string) string {
	for i, v := range knownVoices {
		if v == current {
			return knownVoices[(i+1)%len(knownVoices)]
		}
	}
	return knownVoices[0]
}
