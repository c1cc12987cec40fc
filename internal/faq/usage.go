package faq

import (
	"math"
	"sort"
	"sync"
	"time"
)

// UsageStats summarizes routing activity over the rolling window.
type UsageStats struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	WindowSize      int            `json:"window_size"`
	Decisions       map[string]int `json:"decisions"`
	SpentCostCents  float64        `json:"spent_cost_cents"`
	AvoidedRemote   int            `json:"avoided_remote"`
	AvgRemoteCents  float64        `json:"avg_remote_cents"`
	P95RemoteCents  float64        `json:"p95_remote_cents"`
	LastRemoteCents float64        `json:"last_remote_cents"`
}

// UsageMeter keeps a rolling window of routing decisions for observability.
// This is metering, not correctness: callers never block on it and it never
// returns an error.
type UsageMeter struct {
	mu         sync.RWMutex
	maxSamples int
	decisions  map[Tier]int
	spentCents float64
	costs      []float64
	next       int
	filled     bool
	last       float64
}

func NewUsageMeter(maxSamples int) *UsageMeter {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &UsageMeter{
		maxSamples: maxSamples,
		decisions:  make(map[Tier]int),
		costs:      make([]float64, maxSamples),
	}
}

// Record accounts for one routing decision.
func (m *UsageMeter) Record(d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decisions[d.Tier]++
	if d.Tier != TierRemote {
		return
	}
	m.spentCents += d.EstimatedCostCents
	m.costs[m.next] = d.EstimatedCostCents
	m.last = d.EstimatedCostCents
	m.next++
	if m.next >= len(m.costs) {
		m.next = 0
		m.filled = true
	}
}

// Snapshot returns a copy of the current usage picture.
func (m *UsageMeter) Snapshot() UsageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	decisions := make(map[string]int, len(m.decisions))
	for tier, count := range m.decisions {
		decisions[string(tier)] = count
	}

	n := m.next
	if m.filled {
		n = len(m.costs)
	}
	stats := UsageStats{
		GeneratedAt:    time.Now().UTC(),
		WindowSize:     m.maxSamples,
		Decisions:      decisions,
		SpentCostCents: round2(m.spentCents),
		AvoidedRemote:  m.decisions[TierLocal] + m.decisions[TierCached],
	}
	if n > 0 {
		samples := make([]float64, n)
		copy(samples, m.costs[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		stats.AvgRemoteCents = round2(sum / float64(n))
		stats.P95RemoteCents = round2(quantile(samples, 0.95))
		stats.LastRemoteCents = round2(m.last)
	}
	return stats
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
