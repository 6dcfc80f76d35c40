package logging

import (
	"sync"
	"time"
)

// RateSampler suppresses repetitive log lines (dropped frames, corrupt frames,
// queue-full rejections) so a fault at capture rate produces one line per
// interval per key instead of one per frame.
type RateSampler struct {
	mu         sync.Mutex
	interval   time.Duration
	last       map[string]time.Time
	suppressed map[string]int
}

// NewRateSampler constructs a sampler that emits at most once per interval
// for each key (default 5s).
func NewRateSampler(interval time.Duration) *RateSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &RateSampler{
		interval:   interval,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

// Allow reports whether an event for key should be logged at now. When it
// returns true, suppressed is the number of events swallowed since the
// previous emitted line.
func (s *RateSampler) Allow(key string, now time.Time) (ok bool, suppressed int) {
	if s == nil {
		return true, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, seen := s.last[key]; seen && now.Sub(last) < s.interval {
		s.suppressed[key]++
		return false, 0
	}
	s.last[key] = now
	suppressed = s.suppressed[key]
	delete(s.suppressed, key)
	return true, suppressed
}

// Reset clears the sampler state (e.g. when a new session starts).
func (s *RateSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.last)
	clear(s.suppressed)
}
