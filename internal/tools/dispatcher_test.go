package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agoravox/agoravox/internal/observability"
	"github.com/agoravox/agoravox/internal/policy"
)

type fakeSession struct {
	disconnects int
	voiceChange []string
}

func (s *fakeSession) Disconnect()              { s.disconnects++ }
func (s *fakeSession) ChangeVoice(voice string) { s.voiceChange = append(s.voiceChange, voice) }

type recordingHandler struct {
	calls []Call
	err   error
}

func (h *recordingHandler) HandleToolCall(_ context.Context, name string, args map[string]any) error {
	h.calls = append(h.calls, Call{Name: name, Arguments: args})
	return h.err
}

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("agoravox_test_tools_%d", time.Now().UnixNano()))
}

func TestDispatchStopConversation(t *testing.T) {
	session := &fakeSession{}
	handler := &recordingHandler{}
	d := NewDispatcher(session, handler, policy.RoleCitizen, testMetrics(t), nil)

	d.Dispatch(context.Background(), Call{Name: "stop_conversation", Arguments: map[string]any{}})

	if session.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", session.disconnects)
	}
	if len(handler.calls) != 0 {
		t.Fatalf("host callback invoked for stop_conversation")
	}
}

func TestDispatchChangeVoice(t *testing.T) {
	session := &fakeSession{}
	d := NewDispatcher(session, &recordingHandler{}, policy.RoleCitizen, testMetrics(t), nil)

	d.Dispatch(context.Background(), Call{Name: "change_voice", Arguments: map[string]any{"voice": "shimmer"}})

	if len(session.voiceChange) != 1 || session.voiceChange[0] != "shimmer" {
		t.Fatalf("voiceChange = %v, want [shimmer]", session.voiceChange)
	}
}

func TestDispatchForwardsKnownToolToHandler(t *testing.T) {
	handler := &recordingHandler{}
	d := NewDispatcher(&fakeSession{}, handler, policy.RoleCitizen, testMetrics(t), nil)

	d.Dispatch(context.Background(), ParseCall("navigate_app", `{"path":"/documents"}`))

	if len(handler.calls) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(handler.calls))
	}
	if handler.calls[0].Name != "navigate_app" {
		t.Fatalf("tool name = %q, want navigate_app", handler.calls[0].Name)
	}
	if got := handler.calls[0].Arguments["path"]; got != "/documents" {
		t.Fatalf("path argument = %v, want /documents", got)
	}
}

func TestDispatchDeniesGatedToolForCitizen(t *testing.T) {
	handler := &recordingHandler{}
	var notices []string
	d := NewDispatcher(&fakeSession{}, handler, policy.RoleCitizen, testMetrics(t), func(text string) {
		notices = append(notices, text)
	})

	d.Dispatch(context.Background(), Call{Name: "generate_document", Arguments: map[string]any{"document_type": "attestation"}})

	if len(handler.calls) != 0 {
		t.Fatalf("host callback invoked for denied gated tool")
	}
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1 denial notice", len(notices))
	}
}

func TestDispatchAllowsGatedToolForDeputy(t *testing.T) {
	handler := &recordingHandler{}
	d := NewDispatcher(&fakeSession{}, handler, policy.RoleDeputy, testMetrics(t), nil)

	d.Dispatch(context.Background(), Call{Name: "generate_document", Arguments: map[string]any{"document_type": "attestation"}})

	if len(handler.calls) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(handler.calls))
	}
}

func TestDispatchIgnoresUnknownTool(t *testing.T) {
	handler := &recordingHandler{}
	d := NewDispatcher(&fakeSession{}, handler, policy.RoleAdmin, testMetrics(t), nil)

	d.Dispatch(context.Background(), Call{Name: "self_destruct", Arguments: map[string]any{}})

	if len(handler.calls) != 0 {
		t.Fatalf("host callback invoked for unknown tool")
	}
}

func TestDispatchSurfacesHandlerError(t *testing.T) {
	handler := &recordingHandler{err: errors.New("boom")}
	var notices []string
	d := NewDispatcher(&fakeSession{}, handler, policy.RoleCitizen, testMetrics(t), func(text string) {
		notices = append(notices, text)
	})

	d.Dispatch(context.Background(), Call{Name: "lookup_contact", Arguments: map[string]any{"name": "dupont"}})

	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1 failure notice", len(notices))
	}
}

func TestParseCallDegradesMalformedArguments(t *testing.T) {
	call := ParseCall("navigate_app", `{"path":`)
	if call.Name != "navigate_app" {
		t.Fatalf("Name = %q, want navigate_app", call.Name)
	}
	if len(call.Arguments) != 0 {
		t.Fatalf("Arguments = %v, want empty map", call.Arguments)
	}

	call = ParseCall("navigate_app", `{"path":"/documents"}`)
	if call.StringArg("path") != "/documents" {
		t.Fatalf("StringArg(path) = %q, want /documents", call.StringArg("path"))
	}
}
