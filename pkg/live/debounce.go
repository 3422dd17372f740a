package live

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDebounce is the quiet period before pending file changes are read.
const DefaultDebounce = 200 * time.Millisecond

// debouncer runs the most recent callback once no Trigger has happened for
// the configured duration.
type debouncer struct {
	clock    clock.Clock
	duration time.Duration

	mu    sync.Mutex
	timer *clock.Timer
}

func newDebouncer(c clock.Clock, d time.Duration) *debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &debouncer{clock: c, duration: d}
}

func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.duration, fn)
}

func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
