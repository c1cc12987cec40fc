package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/agoravox/agoravox/internal/realtime"
)

// Browsers capture in 20ms opus frames; the gateway forwards them untouched.
const wsFrameDuration = 20 * time.Millisecond

// wsAudioSource adapts the websocket's binary messages to the AudioSource
// collaborator: the portal UI streams encoded microphone frames and the
// gateway relays them to the realtime transport. Frames arriving while no
// conversation is connected are dropped.
type wsAudioSource struct {
	mu      sync.Mutex
	running bool
	frames  chan realtime.AudioFrame
}

func newWSAudioSource() *wsAudioSource {
	return &wsAudioSource{}
}

func (s *wsAudioSource) Start(_ context.Context) (<-chan realtime.AudioFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(chan realtime.AudioFrame, 64)
	s.running = true
	return s.frames, nil
}

func (s *wsAudioSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.frames)
	s.frames = nil
}

// Push relays one encoded frame. Never blocks the websocket read loop; a
// saturated transport drops frames instead.
func (s *wsAudioSource) Push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case s.frames <- realtime.AudioFrame{Data: buf, Duration: wsFrameDuration}:
	default:
	}
}
