package session

import (
	"sync"
	"time"
)

// debouncer coalesces rapid display updates into one commit per quiet
// window. A new update cancels and replaces the scheduled one (last
// write wins); at most one timer is outstanding.
type debouncer struct {
	window time.Duration
	commit func(string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

func newDebouncer(window time.Duration, commit func(string)) *debouncer {
	return &debouncer{window: window, commit: commit}
}

// Update schedules html to be committed after the window elapses.
func (d *debouncer) Update(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = html
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	html := d.pending
	d.pending = ""
	d.timer = nil
	d.mu.Unlock()
	if html != "" {
		d.commit(html)
	}
}

// Cancel drops any scheduled commit.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = ""
}
