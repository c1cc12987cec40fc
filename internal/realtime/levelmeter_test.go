package realtime

import "testing"

func TestLevelMeterSilenceStaysNearZero(t *testing.T) {
	var m LevelMeter

	silence := make([]int16, 960)
	for i := 0; i < 20; i++ {
		m.Observe(silence)
	}
	if lvl := m.Level(); lvl > 0.01 {
		t.Fatalf("Level() = %v after silence, want ~0", lvl)
	}
}

func TestLevelMeterLoudFrameRaisesLevel(t *testing.T) {
	var m LevelMeter

	loud := make([]int16, 960)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 12000
		} else {
			loud[i] = -12000
		}
	}
	m.Observe(loud)
	if lvl := m.Level(); lvl < 0.3 {
		t.Fatalf("Level() = %v after loud frame, want >= 0.3", lvl)
	}
	if lvl := m.Level(); lvl > 1 {
		t.Fatalf("Level() = %v, want <= 1", lvl)
	}
}

func TestLevelMeterDecaysAfterSpeech(t *testing.T) {
	var m LevelMeter

	loud := make([]int16, 960)
	for i := range loud {
		loud[i] = 12000
	}
	m.Observe(loud)
	peak := m.Level()

	silence := make([]int16, 960)
	for i := 0; i < 30; i++ {
		m.Observe(silence)
	}
	if lvl := m.Level(); lvl >= peak/2 {
		t.Fatalf("Level() = %v, want decay from peak %v", lvl, peak)
	}
}

func TestLevelMeterReset(t *testing.T) {
	var m LevelMeter

	loud := make([]int16, 480)
	for i := range loud {
		loud[i] = 10000
	}
	m.Observe(loud)
	m.Reset()
	if lvl := m.Level(); lvl != 0 {
		t.Fatalf("Level() = %v after Reset, want 0", lvl)
	}
}
