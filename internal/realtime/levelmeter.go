package realtime

import (
	"math"
	"sync/atomic"
)

// LevelMeter tracks a normalized 0..1 microphone activity level for UI
// metering. Writers feed PCM frames as they are sent; readers sample Level
// on their own cadence. Lock-free so the media pump never blocks on the UI.
type LevelMeter struct {
	bits atomic.Uint64
}

// Smoothing keeps the needle responsive on attack and gentle on release.
const (
	levelAttack  = 0.6
	levelRelease = 0.15
	// Full scale sits well below the int16 maximum; speech rarely peaks there.
	levelFullScale = 12000.0
)

// Observe folds one PCM16 frame into the running level.
func (m *LevelMeter) Observe(pcm []int16) {
	if len(pcm) == 0 {
		return
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(pcm)))
	instant := math.Min(rms/levelFullScale, 1)

	prev := m.Level()
	coeff := levelRelease
	if instant > prev {
		coeff = levelAttack
	}
	next := prev + (instant-prev)*coeff
	m.bits.Store(math.Float64bits(next))
}

// Level returns the current normalized activity level.
func (m *LevelMeter) Level() float64 {
	return math.Float64frombits(m.bits.Load())
}

// Reset zeroes the meter, used when the session disconnects.
func (m *LevelMeter) Reset() {
	m.bits.Store(0)
}
