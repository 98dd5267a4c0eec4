package service

import "sync"

// DedupGuard remembers which tasks were handled in the current matching
// minute. It holds one window at a time: marking a pair with a new minute key
// drops everything recorded for the previous one.
//
// Each entry also records whether recurrence advancement for the task has
// settled, so a tick that fired the alarm but failed to write the successor
// can retry the write later in the same minute without firing again.
type DedupGuard struct {
	mu      sync.Mutex
	window  string
	settled map[uint]bool
}

func NewDedupGuard() *DedupGuard {
	return &DedupGuard{settled: make(map[uint]bool)}
}

// Mark records (id, key) and reports whether it was new.
func (g *DedupGuard) Mark(id uint, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked(key)
	if _, ok := g.settled[id]; ok {
		return false
	}
	g.settled[id] = false
	return true
}

// Settle marks the task as fully handled for key.
func (g *DedupGuard) Settle(id uint, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked(key)
	g.settled[id] = true
}

// Settled reports whether (id, key) was fully handled.
func (g *DedupGuard) Settled(id uint, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if key != g.window {
		return false
	}
	return g.settled[id]
}

// Roll clears the guard when key starts a new window.
func (g *DedupGuard) Roll(key string) {
	g.mu.Lock()
	g.rollLocked(key)
	g.mu.Unlock()
}

func (g *DedupGuard) rollLocked(key string) {
	if key == g.window {
		return
	}
	g.window = key
	clear(g.settled)
}

// Len returns the number of entries in the current window.
func (g *DedupGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.settled)
}

// Window returns the minute key the guard currently holds.
func (g *DedupGuard) Window() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window
}
