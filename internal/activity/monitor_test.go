package activity

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestResetTimerFiresOnce(t *testing.T) {
	m := NewMonitor(50 * time.Millisecond)

	var first, second, last int32
	m.ResetTimer(7, func(uint) { atomic.AddInt32(&first, 1) })
	m.ResetTimer(7, func(uint) { atomic.AddInt32(&second, 1) })
	m.ResetTimer(7, func(uint) { atomic.AddInt32(&last, 1) })

	time.Sleep(200 * time.Millisecond)

	if n := atomic.LoadInt32(&first); n != 0 {
		t.Fatalf("first callback fired %d times", n)
	}
	if n := atomic.LoadInt32(&second); n != 0 {
		t.Fatalf("second callback fired %d times", n)
	}
	if n := atomic.LoadInt32(&last); n != 1 {
		t.Fatalf("last callback fired %d times, want 1", n)
	}
	if m.Pending() != 0 {
		t.Fatalf("pending = %d after expiry, want 0", m.Pending())
	}
}

func TestResetTimerExtendsDeadline(t *testing.T) {
	m := NewMonitor(100 * time.Millisecond)

	var fired int32
	cb := func(uint) { atomic.AddInt32(&fired, 1) }

	m.ResetTimer(7, cb)
	time.Sleep(60 * time.Millisecond)
	m.ResetTimer(7, cb)
	time.Sleep(60 * time.Millisecond)

	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("fired %d times before the extended deadline", n)
	}
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
}

func TestClearTimer(t *testing.T) {
	m := NewMonitor(50 * time.Millisecond)

	var fired int32
	m.ResetTimer(7, func(uint) { atomic.AddInt32(&fired, 1) })
	m.ClearTimer(7)

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("fired %d times after clear", n)
	}
	if m.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", m.Pending())
	}
}

func TestTimersAreIndependentPerUser(t *testing.T) {
	m := NewMonitor(50 * time.Millisecond)

	var a, b int32
	m.ResetTimer(1, func(uint) { atomic.AddInt32(&a, 1) })
	m.ResetTimer(2, func(uint) { atomic.AddInt32(&b, 1) })
	m.ClearTimer(1)

	time.Sleep(150 * time.Millisecond)
	if atomic.LoadInt32(&a) != 0 {
		t.Fatal("cleared user's timer fired")
	}
	if atomic.LoadInt32(&b) != 1 {
		t.Fatal("other user's timer did not fire")
	}
}

func TestZeroTimeoutFallsBackToDefault(t *testing.T) {
	m := NewMonitor(0)
	if m.timeout != DefaultTimeout {
		t.Fatalf("timeout = %v, want %v", m.timeout, DefaultTimeout)
	}
}
