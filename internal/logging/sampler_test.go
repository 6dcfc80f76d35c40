package logging

import (
	"testing"
	"time"
)

func TestRateSamplerDefaultsInterval(t *testing.T) {
	s := NewRateSampler(0)
	if s.interval != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", s.interval)
	}
}

func TestRateSamplerSuppressesWithinInterval(t *testing.T) {
	s := NewRateSampler(time.Second)
	base := time.Unix(1_700_000_000, 0)

	if ok, n := s.Allow("drop", base); !ok || n != 0 {
		t.Fatalf("first event: ok=%v suppressed=%d", ok, n)
	}
	for i := 1; i <= 3; i++ {
		if ok, _ := s.Allow("drop", base.Add(time.Duration(i)*100*time.Millisecond)); ok {
			t.Fatalf("event %d inside interval should be suppressed", i)
		}
	}
	if ok, _ := s.Allow("corrupt", base.Add(200*time.Millisecond)); !ok {
		t.Fatal("distinct key should not be suppressed")
	}
	ok, n := s.Allow("drop", base.Add(1500*time.Millisecond))
	if !ok || n != 3 {
		t.Fatalf("after interval: ok=%v suppressed=%d, want true/3", ok, n)
	}
}

func TestRateSamplerResetAndNil(t *testing.T) {
	s := NewRateSampler(time.Hour)
	now := time.Now()
	s.Allow("k", now)
	s.Reset()
	if ok, _ := s.Allow("k", now); !ok {
		t.Fatal("expected reset sampler to allow")
	}

	var nilSampler *RateSampler
	if ok, _ := nilSampler.Allow("k", now); !ok {
		t.Fatal("nil sampler should always allow")
	}
	nilSampler.Reset()
}
