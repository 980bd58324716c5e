package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_SetAdvance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	clock.Advance(2 * time.Second)
	if d := clock.Since(start); d != 2*time.Second {
		t.Errorf("Since() = %v, want 2s", d)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClock_AutoStep(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewMockClock(start)
	clock.SetAutoStep(10 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	if d := second.Sub(first); d != 10*time.Millisecond {
		t.Errorf("successive Now() readings differ by %v, want 10ms", d)
	}
	// Since does not step the clock
	if d := clock.Since(start); d != 20*time.Millisecond {
		t.Errorf("Since() = %v, want 20ms", d)
	}
}
