package window

import "sync"

// Watermark remembers the newest event time seen. Buckets are keyed by
// arrival order; a lower timestamp is still applied but reported as a regression.
type Watermark struct {
	mu      sync.Mutex
	current int64
	initted bool
}

func NewWatermark() *Watermark {
	return &Watermark{}
}

// Advance moves the watermark to ts and reports whether ts went backwards
func (w *Watermark) Advance(ts int64) (regressed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initted {
		w.current = ts
		w.initted = true
		return false
	}

	if ts < w.current {
		return true
	}
	w.current = ts
	return false
}

func (w *Watermark) Current() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.initted
}
