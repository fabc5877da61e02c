package engine

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	clock := NewManualClock()
	var fired []string

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(time.Second, func() {
		fired = append(fired, "a")
		clock.AfterFunc(500*time.Millisecond, func() { fired = append(fired, "a2") })
	})
	stopped := clock.AfterFunc(time.Second, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Error("Expected Stop to report a pending timer")
	}
	if stopped.Stop() {
		t.Error("Expected second Stop to return false")
	}

	clock.Advance(2 * time.Second)

	expected := []string{"a", "a2", "b"}
	if len(fired) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, fired)
	}
	for i := range expected {
		if fired[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, fired)
			break
		}
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", clock.Pending())
	}
	if clock.Now() != 2*time.Second {
		t.Errorf("Expected clock at 2s, got %v", clock.Now())
	}
}
