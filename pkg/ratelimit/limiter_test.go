package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAdmitsUpToMax(t *testing.T) {
	l := New(1*time.Minute, 3)
	base := time.Now()

	for i := 0; i < 3; i++ {
		admitted, wait := l.acquireAt(base)
		if !admitted {
			t.Fatalf("request %d: expected admitted, got denied with wait %v", i, wait)
		}
	}

	admitted, wait := l.acquireAt(base)
	if admitted {
		t.Fatalf("4th request should be denied within the window")
	}
	if wait <= 0 {
		t.Errorf("expected positive wait, got %v", wait)
	}
}

func TestLimiterPrunesOldTimestamps(t *testing.T) {
	l := New(1*time.Second, 1)
	base := time.Now()

	admitted, _ := l.acquireAt(base)
	if !admitted {
		t.Fatalf("first request should be admitted")
	}

	admitted, _ = l.acquireAt(base.Add(500 * time.Millisecond))
	if admitted {
		t.Fatalf("second request within window should be denied")
	}

	admitted, _ = l.acquireAt(base.Add(2 * time.Second))
	if !admitted {
		t.Fatalf("request after window expiry should be admitted")
	}
}

func TestLimiterWaitNeverNegative(t *testing.T) {
	l := New(10*time.Second, 1)
	base := time.Now()

	l.acquireAt(base)
	_, wait := l.acquireAt(base.Add(20 * time.Second))
	if wait < 0 {
		t.Errorf("wait must be clamped to >= 0, got %v", wait)
	}
}

func TestLimiterWindowNeverExceedsMaxRequests(t *testing.T) {
	l := New(100*time.Millisecond, 5)
	base := time.Now()

	admittedCount := 0
	var admittedAt []time.Time
	for i := 0; i < 20; i++ {
		now := base.Add(time.Duration(i) * 10 * time.Millisecond)
		if admitted, _ := l.acquireAt(now); admitted {
			admittedCount++
			admittedAt = append(admittedAt, now)
		}
	}

	// Requests fire every 10ms for 200ms against a 5-per-100ms window, so
	// some must be denied and no 100ms window may hold more than 5
	// admissions.
	if admittedCount >= 20 {
		t.Errorf("expected some requests to be denied, all %d were admitted", admittedCount)
	}
	for _, end := range admittedAt {
		inWindow := 0
		for _, ts := range admittedAt {
			if ts.After(end.Add(-100*time.Millisecond)) && !ts.After(end) {
				inWindow++
			}
		}
		if inWindow > 5 {
			t.Errorf("window ending at +%v holds %d admissions, want at most 5", end.Sub(base), inWindow)
		}
	}
}
