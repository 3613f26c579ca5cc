package summarize

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	service    string
	durationMs int64
	failed     bool
}

// StatsSnapshot aggregates remote summary calls inside the stats window.
type StatsSnapshot struct {
	Count     int                     `json:"count"`
	Failures  int                     `json:"failures"`
	Fallbacks int                     `json:"fallbacks"`
	MinMs     int64                   `json:"min_ms"`
	MaxMs     int64                   `json:"max_ms"`
	AvgMs     float64                 `json:"avg_ms"`
	P50Ms     float64                 `json:"p50_ms"`
	P95Ms     float64                 `json:"p95_ms"`
	P99Ms     float64                 `json:"p99_ms"`
	Services  map[string]ServiceStats `json:"services,omitempty"`
}

// ServiceStats counts calls for one backend.
type ServiceStats struct {
	Calls     int `json:"calls"`
	Failures  int `json:"failures"`
	Fallbacks int `json:"fallbacks"`
}

// LLMStats tracks recent summary service calls within a rolling window.
type LLMStats struct {
	mu        sync.Mutex
	samples   []sample
	fallbacks []sample
	maxAge    time.Duration
	now       func() time.Time
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one remote call. err is the call's outcome.
func (s *LLMStats) Record(service string, durationMs int64, err error) {
	if durationMs < 0 {
		durationMs = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		service:    service,
		durationMs: durationMs,
		failed:     err != nil,
	})
}

// RecordFallback notes a summary that fell back to local generation.
func (s *LLMStats) RecordFallback(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.fallbacks = append(s.fallbacks, sample{timestamp: now, service: service})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{Fallbacks: len(s.fallbacks)}
	if len(s.samples) == 0 && len(s.fallbacks) == 0 {
		return snap
	}

	snap.Services = make(map[string]ServiceStats)
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		st := snap.Services[sm.service]
		st.Calls++
		if sm.failed {
			st.Failures++
			snap.Failures++
		}
		snap.Services[sm.service] = st
	}
	for _, fb := range s.fallbacks {
		st := snap.Services[fb.service]
		st.Fallbacks++
		snap.Services[fb.service] = st
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = pruneBefore(s.samples, cutoff)
	s.fallbacks = pruneBefore(s.fallbacks, cutoff)
}

func pruneBefore(samples []sample, cutoff time.Time) []sample {
	writeIdx := 0
	for _, sm := range samples {
		if !sm.timestamp.Before(cutoff) {
			samples[writeIdx] = sm
			writeIdx++
		}
	}
	return samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
