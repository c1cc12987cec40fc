package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agoravox/agoravox/internal/observability"
	"github.com/agoravox/agoravox/internal/policy"
)

// Handler is the seam to the host application: it owns the actual side
// effects (navigation, document generation, messaging). The orchestrator
// never touches those collaborators directly.
type Handler interface {
	HandleToolCall(ctx context.Context, name string, args map[string]any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, name string, args map[string]any) error

func (f HandlerFunc) HandleToolCall(ctx context.Context, name string, args map[string]any) error {
	return f(ctx, name, args)
}

// SessionControl is implemented by the orchestrator for the two tool calls
// that act on the session itself instead of the host application.
type SessionControl interface {
	Disconnect()
	ChangeVoice(voice string)
}

const dispatchTimeout = 10 * time.Second

// Dispatcher validates and routes tool calls. All failure modes are
// non-fatal: they are surfaced through notify and the session stays up,
// except for stop_conversation which tears the session down on purpose.
type Dispatcher struct {
	session SessionControl
	handler Handler
	role    policy.Role
	metrics *observability.Metrics
	notify  func(text string)
}

func NewDispatcher(session SessionControl, handler Handler, role policy.Role, metrics *observability.Metrics, notify func(text string)) *Dispatcher {
	if notify == nil {
		notify = func(string) {}
	}
	return &Dispatcher{
		session: session,
		handler: handler,
		role:    role,
		metrics: metrics,
		notify:  notify,
	}
}

// Dispatch executes one tool call. Both the remote-model path and the local
// router path are normalized to a Call before reaching this point.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) {
	if call.Name == "" {
		return
	}

	switch call.Name {
	case "stop_conversation":
		d.count(call.Name, "ok")
		d.session.Disconnect()
		return
	case "change_voice":
		d.count(call.Name, "ok")
		d.session.ChangeVoice(call.StringArg("voice"))
		return
	}

	if !KnownTool(call.Name) {
		log.Printf("tools: ignoring unknown tool %q", call.Name)
		d.count(call.Name, "unknown")
		return
	}

	if !policy.CanInvoke(d.role, call.Name) {
		log.Printf("tools: role %q denied for gated tool %q", d.role, call.Name)
		if d.metrics != nil {
			d.metrics.ToolDenied.WithLabelValues(call.Name).Inc()
		}
		d.count(call.Name, "denied")
		d.notify("Cette action est réservée aux comptes habilités.")
		return
	}

	if d.handler == nil {
		d.count(call.Name, "no_handler")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := d.handler.HandleToolCall(ctx, call.Name, call.Arguments); err != nil {
		log.Printf("tools: %q failed: %v", call.Name, err)
		d.count(call.Name, "error")
		d.notify(fmt.Sprintf("L'action %s a échoué.", call.Name))
		return
	}
	d.count(call.Name, "ok")
}

func (d *Dispatcher) count(tool, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.ToolDispatches.WithLabelValues(tool, outcome).Inc()
}
