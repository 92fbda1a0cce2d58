package activity

import (
	"sync"
	"time"
)

// DefaultTimeout is the inactivity window before a user's sessions are
// expired.
const DefaultTimeout = 10 * time.Minute

// Monitor owns the per-user inactivity timers. It holds in-process state
// only, so the timeout is correct under a single instance or sticky
// sessions; a shared keyed-expiry store would replace it for horizontal
// scale.
type Monitor struct {
	mu      sync.Mutex
	timers  map[uint]*time.Timer
	timeout time.Duration
}

func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{timers: make(map[uint]*time.Timer), timeout: timeout}
}

// ResetTimer (re)arms the countdown for a user. A pending timer is
// cancelled first, so repeated calls push the deadline out rather than
// stacking callbacks; only the last registered onExpire can fire.
func (m *Monitor) ResetTimer(userID uint, onExpire func(userID uint)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[userID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(m.timeout, func() {
		m.mu.Lock()
		current := m.timers[userID] == t
		if current {
			delete(m.timers, userID)
		}
		m.mu.Unlock()
		// A timer that lost the race to a newer Reset must not fire.
		if current {
			onExpire(userID)
		}
	})
	m.timers[userID] = t
}

// ClearTimer cancels any pending timer for the user, e.g. on explicit
// logout.
func (m *Monitor) ClearTimer(userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[userID]; ok {
		t.Stop()
		delete(m.timers, userID)
	}
}

// Pending reports how many timers are live.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
