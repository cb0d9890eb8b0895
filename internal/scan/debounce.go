package scan

import (
	"sync"
	"time"
)

// Debouncer collapses duplicate frames of a still-visible code. A camera
// read loop decodes the same QR several times per second; only the first
// sighting within the window should reach the validator.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]sighting
}

type sighting struct {
	payload string
	at      time.Time
}

// NewDebouncer builds a debouncer; window <= 0 falls back to 2s.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Debouncer{window: window, last: make(map[string]sighting)}
}

// Duplicate reports whether scanner saw this exact payload within the
// window, recording the sighting either way.
func (d *Debouncer) Duplicate(scannerID, payload string) bool {
	now := NowFunc()
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.last[scannerID]
	d.last[scannerID] = sighting{payload: payload, at: now}
	return ok && prev.payload == payload && now.Sub(prev.at) < d.window
}
