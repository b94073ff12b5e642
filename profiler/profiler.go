// Package profiler - Stage timing for the segmentation pipeline.
//
// The profiler aggregates wall-clock durations per named stage (image load,
// inference, mask output) so batch runs can report where the time went. It's
// thread-safe and imposes no overhead on stages that are never tracked.
package profiler

import (
	"sync"
	"time"
)

// StageStats summarizes every recorded duration for one stage.
type StageStats struct {
	Name  string
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the average duration per recorded observation.
func (s StageStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler accumulates per-stage timing statistics.
type Profiler struct {
	mu     sync.Mutex
	stages map[string]*StageStats
	// order preserves first-observation order for reporting.
	order []string
}

// New creates an empty profiler.
func New() *Profiler {
	return &Profiler{stages: make(map[string]*StageStats)}
}

// Observe records one duration for the named stage.
func (p *Profiler) Observe(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stages[stage]
	if !ok {
		s = &StageStats{Name: stage, Min: d, Max: d}
		p.stages[stage] = s
		p.order = append(p.order, stage)
	}
	s.Count++
	s.Total += d
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

// Track starts a timer for the named stage and returns the function that
// stops it and records the elapsed time:
//
//	defer p.Track("inference")()
func (p *Profiler) Track(stage string) func() {
	start := time.Now()
	return func() {
		p.Observe(stage, time.Since(start))
	}
}

// Stats returns a snapshot of every stage in first-observation order.
func (p *Profiler) Stats() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageStats, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.stages[name])
	}
	return out
}
