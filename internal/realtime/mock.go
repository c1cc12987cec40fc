package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

// MockDialer is an in-memory Dialer used by tests and by the service's mock
// mode when no remote credentials are configured.
type MockDialer struct {
	mu         sync.Mutex
	transports []*MockTransport

	// DialErr, when set, fails every Dial attempt.
	DialErr error
	// HoldOpen leaves the control channel unopened until OpenNow is called.
	HoldOpen bool
}

func NewMockDialer() *MockDialer { return &MockDialer{} }

func (d *MockDialer) Dial(_ context.Context, _ string, frames <-chan AudioFrame) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	t := newMockTransport()
	if !d.HoldOpen {
		t.OpenNow()
	}
	go t.drain(frames)
	d.transports = append(d.transports, t)
	return t, nil
}

// Transports returns every transport handed out so far.
func (d *MockDialer) Transports() []*MockTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockTransport, len(d.transports))
	copy(out, d.transports)
	return out
}

// MockTransport records outbound events and lets tests inject inbound ones.
type MockTransport struct {
	mu       sync.Mutex
	sent     []json.RawMessage
	closed   bool
	opened   chan struct{}
	openOnce sync.Once
	done     chan struct{}
	events   chan []byte
	meter    LevelMeter
}

func newMockTransport() *MockTransport {
	return &MockTransport{
		opened: make(chan struct{}),
		done:   make(chan struct{}),
		events: make(chan []byte, 256),
	}
}

func (t *MockTransport) Opened() <-chan struct{} { return t.opened }
func (t *MockTransport) Done() <-chan struct{}   { return t.done }
func (t *MockTransport) Events() <-chan []byte   { return t.events }
func (t *MockTransport) Level() float64          { return t.meter.Level() }

func (t *MockTransport) OpenNow() {
	t.openOnce.Do(func() { close(t.opened) })
}

func (t *MockTransport) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.sent = append(t.sent, b)
	return nil
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	close(t.events)
	t.meter.Reset()
	return nil
}

func (t *MockTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// InjectEvent delivers one inbound control-channel event to the consumer.
func (t *MockTransport) InjectEvent(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.InjectRaw(b)
}

func (t *MockTransport) InjectRaw(raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events <- raw
}

// Sent returns the outbound events recorded so far, decoded into envelopes.
func (t *MockTransport) Sent() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Envelope, 0, len(t.sent))
	for _, raw := range t.sent {
		var env Envelope
		_ = json.Unmarshal(raw, &env)
		out = append(out, env)
	}
	return out
}

// SentRaw returns the raw outbound payloads.
func (t *MockTransport) SentRaw() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]json.RawMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// CountSent counts outbound events of one type.
func (t *MockTransport) CountSent(eventType EventType) int {
	count := 0
	for _, env := range t.Sent() {
		if env.Type == eventType {
			count++
		}
	}
	return count
}

func (t *MockTransport) drain(frames <-chan AudioFrame) {
	for {
		select {
		case <-t.done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			t.meter.Observe(frame.PCM)
		}
	}
}

// MockSource is an AudioSource producing silence, used by tests and mock
// mode. Each Start call yields a fresh frame channel, so the source survives
// reconnects the way a real capture device does.
type MockSource struct {
	mu      sync.Mutex
	running bool
	stops   int
	frames  chan AudioFrame

	// PermissionDenied simulates the user refusing microphone consent.
	PermissionDenied bool
}

func NewMockSource() *MockSource {
	return &MockSource{}
}

func (s *MockSource) Start(_ context.Context) (<-chan AudioFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PermissionDenied {
		return nil, ErrPermissionDenied
	}
	s.frames = make(chan AudioFrame, 16)
	s.running = true
	return s.frames, nil
}

func (s *MockSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stops++
	close(s.frames)
	s.frames = nil
}

// Running reports whether capture is currently active.
func (s *MockSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stops counts how many times capture was torn down.
func (s *MockSource) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Push feeds one frame, for metering tests.
func (s *MockSource) Push(frame AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.frames <- frame
}
