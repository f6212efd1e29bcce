// internal/app/change_detector.go
package app

import (
	"sync"
	"sync/atomic"
)

// ChangeDetector reconciles the two row-change paths.
//
// The push path (Observe) is fed by the page's mutation observer and compares the
// topmost row's markup with the last markup seen. The pull path (Take) is called once
// per poll iteration and atomically reads and clears the pending flag, so any number
// of mutation callbacks for one content change produce a single detection.
type ChangeDetector struct {
	mu       sync.Mutex
	last     string
	hasLast  bool
	pending  atomic.Bool
	observed atomic.Int64
}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Observe records the current topmost-row markup and reports whether it differs from
// the previous one. Markup is compared byte for byte, so attribute-only changes count too.
func (d *ChangeDetector) Observe(content string) bool {
	d.observed.Add(1)

	d.mu.Lock()
	changed := !d.hasLast || content != d.last
	if changed {
		d.last = content
		d.hasLast = true
	}
	d.mu.Unlock()

	if changed {
		d.pending.Store(true)
	}
	return changed
}

// Take returns true at most once per pending change.
func (d *ChangeDetector) Take() bool {
	return d.pending.Swap(false)
}

// Reset forgets the cached row and any pending change. It must be called whenever
// the observer is re-attached to a freshly loaded page.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	d.last = ""
	d.hasLast = false
	d.mu.Unlock()
	d.pending.Store(false)
}

// Observed is the number of mutation callbacks received since start.
func (d *ChangeDetector) Observed() int64 {
	return d.observed.Load()
}
