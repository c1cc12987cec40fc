package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// AudioFrame is one encoded microphone frame. Data is the opus payload for
// the media track; PCM carries the decoded samples used only for metering.
type AudioFrame struct {
	Data     []byte
	PCM      []int16
	Duration time.Duration
}

// ErrPermissionDenied is returned by an AudioSource when the user refused
// microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

var ErrTransportClosed = errors.New("transport closed")

// AudioSource is the platform microphone collaborator. Start blocks until
// capture is running (or consent is refused) and yields frames until Stop.
type AudioSource interface {
	Start(ctx context.Context) (<-chan AudioFrame, error)
	Stop()
}

// Transport is the established peer connection plus its single control
// channel. Events are delivered strictly in arrival order; the session state
// machine is the only writer.
type Transport interface {
	// Opened is closed when the control channel becomes writable.
	Opened() <-chan struct{}
	// Done is closed when the transport dies for any reason.
	Done() <-chan struct{}
	// Events delivers raw inbound control-channel messages.
	Events() <-chan []byte
	Send(v any) error
	Level() float64
	Close() error
}

// Dialer establishes one Transport per connect attempt.
type Dialer interface {
	Dial(ctx context.Context, token string, frames <-chan AudioFrame) (Transport, error)
}

// WebRTCDialer performs the SDP offer/answer exchange against the remote
// voice service and owns the resulting peer connection.
type WebRTCDialer struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewWebRTCDialer(baseURL, model string, client *http.Client) *WebRTCDialer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebRTCDialer{BaseURL: baseURL, Model: model, HTTPClient: client}
}

func (d *WebRTCDialer) Dial(ctx context.Context, token string, frames <-chan AudioFrame) (Transport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &webrtcTransport{
		pc:     pc,
		opened: make(chan struct{}),
		done:   make(chan struct{}),
		events: make(chan []byte, 256),
	}

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create control channel: %w", err)
	}
	t.dc = dc

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "microphone",
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	t.track = track

	dc.OnOpen(func() {
		t.openOnce.Do(func() { close(t.opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.deliver(msg.Data)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			_ = t.Close()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, ctx.Err()
	}

	answerSDP, err := d.exchangeSDP(ctx, token, pc.LocalDescription().SDP)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("apply answer: %w", err)
	}

	go t.pump(frames)
	return t, nil
}

func (d *WebRTCDialer) exchangeSDP(ctx context.Context, token, offerSDP string) (string, error) {
	endpoint := fmt.Sprintf("%s?model=%s", strings.TrimRight(d.BaseURL, "/"), url.QueryEscape(d.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("build handshake request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("handshake request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read handshake body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("handshake returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", fmt.Errorf("handshake returned empty answer")
	}
	return string(body), nil
}

type webrtcTransport struct {
	pc    *webrtc.PeerConnection
	dc    *webrtc.DataChannel
	track *webrtc.TrackLocalStaticSample
	meter LevelMeter

	opened   chan struct{}
	openOnce sync.Once
	done     chan struct{}
	events   chan []byte

	mu     sync.Mutex
	closed bool
}

func (t *webrtcTransport) Opened() <-chan struct{} { return t.opened }
func (t *webrtcTransport) Done() <-chan struct{}   { return t.done }
func (t *webrtcTransport) Events() <-chan []byte   { return t.events }
func (t *webrtcTransport) Level() float64          { return t.meter.Level() }

func (t *webrtcTransport) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	return t.dc.SendText(string(b))
}

// Close tears down the channel, the peer connection and the metering tap.
// Idempotent: safe to call from the user action, the unmount path and the
// connection-state callback.
func (t *webrtcTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	close(t.events)
	t.mu.Unlock()

	t.meter.Reset()
	_ = t.dc.Close()
	return t.pc.Close()
}

func (t *webrtcTransport) deliver(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case t.events <- buf:
	default:
		// Never block the datachannel callback; drop on a saturated consumer.
	}
}

// pump feeds microphone frames into the outbound track and the level meter.
func (t *webrtcTransport) pump(frames <-chan AudioFrame) {
	for {
		select {
		case <-t.done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			t.meter.Observe(frame.PCM)
			if len(frame.Data) == 0 {
				continue
			}
			if err := t.track.WriteSample(media.Sample{Data: frame.Data, Duration: frame.Duration}); err != nil {
				return
			}
		}
	}
}
