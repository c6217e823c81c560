package util

import (
	"testing"
	"time"
)

func TestTimerZeroValue(t *testing.T) {
	var timer Timer
	if got := timer.Elapsed(); got != 0 {
		t.Fatalf("expected zero elapsed for unstarted timer, got %v", got)
	}
	if got := timer.ElapsedMs(); got != 0 {
		t.Fatalf("expected zero ms, got %d", got)
	}
}

func TestTimerElapsed(t *testing.T) {
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	if got := timer.ElapsedMs(); got < 5 {
		t.Fatalf("expected at least 5ms, got %d", got)
	}
}
