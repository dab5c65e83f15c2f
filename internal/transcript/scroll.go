package transcript

import (
	"sync"
	"time"
)

type Viewport interface {
	ScrollToEnd()
}

type entryKey struct {
	id       int
	delivery Delivery
}

// AutoScroller scrolls a viewport to the newest entry shortly after the
// transcript changes or finishes loading. Schedules made before the delay
// elapses collapse into one scroll.
type AutoScroller struct {
	vp    Viewport
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	loading bool
	keys    []entryKey
	stopped bool
}

func NewAutoScroller(vp Viewport, delay time.Duration) *AutoScroller {
	return &AutoScroller{
		vp:      vp,
		delay:   delay,
		loading: true,
	}
}

// Observe records the latest view and schedules a scroll if it differs from
// the previous one.
func (a *AutoScroller) Observe(v View) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}

	loading := v.State == StateLoading
	keys := make([]entryKey, len(v.Entries))
	for i, e := range v.Entries {
		keys[i] = entryKey{id: e.Id, delivery: e.Delivery}
	}

	finishedLoading := a.loading && !loading
	changed := !equalKeys(a.keys, keys)
	a.loading = loading
	a.keys = keys

	if !finishedLoading && !changed {
		return
	}

	if a.timer != nil {
		a.timer.Reset(a.delay)
		return
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *AutoScroller) fire() {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()

	if !stopped {
		a.vp.ScrollToEnd()
	}
}

func (a *AutoScroller) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
	}
}

func equalKeys(a, b []entryKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
