// Package stats implements the per-retry-class counters of spec.md §4.9
// (C9): attempt/success counts, an attempts-taken histogram, and elapsed
// time sums, plus optional per-call API profiling. Reads are racy by
// design ("unlocked... racy counters acceptable"); writes use atomics.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// ClassCounters is the statistics bucket for one retry class.
type ClassCounters struct {
	Attempts  atomic.Uint64
	Successes atomic.Uint64
	ElapsedNS atomic.Int64

	histMu    sync.Mutex
	histogram map[int]uint64 // attempts-taken -> occurrences
}

func newClassCounters() *ClassCounters {
	return &ClassCounters{histogram: map[int]uint64{}}
}

// Record folds one logical operation's outcome into the counters: tries
// is the number of attempts it took, elapsed is the wall-clock time
// spent, ok reports overall success.
func (c *ClassCounters) Record(tries int, elapsed time.Duration, ok bool) {
	c.Attempts.Add(uint64(tries))
	if ok {
		c.Successes.Add(1)
	}
	c.ElapsedNS.Add(int64(elapsed))

	c.histMu.Lock()
	c.histogram[tries]++
	c.histMu.Unlock()
}

// Histogram returns a snapshot of the attempts-taken distribution.
func (c *ClassCounters) Histogram() map[int]uint64 {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	out := make(map[int]uint64, len(c.histogram))
	for k, v := range c.histogram {
		out[k] = v
	}
	return out
}

// Registry aggregates ClassCounters per retry class name, plus optional
// per-function-name API call profiling (spec.md §4.9 "API-level
// profiling (optional)").
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*ClassCounters
	calls   map[string]*callProfile
}

type callProfile struct {
	count atomic.Uint64
	total atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{classes: map[string]*ClassCounters{}, calls: map[string]*callProfile{}}
}

// Class returns (creating if necessary) the counters for a retry class
// name, e.g. "write-read".
func (r *Registry) Class(name string) *ClassCounters {
	r.mu.RLock()
	c, ok := r.classes[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[name]; ok {
		return c
	}
	c = newClassCounters()
	r.classes[name] = c
	return c
}

// Profile records one API-level call's duration against fn, the
// library function name (e.g. "GetVCP").
func (r *Registry) Profile(fn string, elapsed time.Duration) {
	r.mu.RLock()
	p, ok := r.calls[fn]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if p, ok = r.calls[fn]; !ok {
			p = &callProfile{}
			r.calls[fn] = p
		}
		r.mu.Unlock()
	}
	p.count.Add(1)
	p.total.Add(int64(elapsed))
}

// CallStats is a snapshot of one function's profiling data.
type CallStats struct {
	Count        uint64
	TotalElapsed time.Duration
}

// Calls returns a snapshot of all profiled function names.
func (r *Registry) Calls() map[string]CallStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]CallStats, len(r.calls))
	for name, p := range r.calls {
		out[name] = CallStats{Count: p.count.Load(), TotalElapsed: time.Duration(p.total.Load())}
	}
	return out
}
