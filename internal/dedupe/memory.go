package dedupe

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// MemoryDedupe keeps seen event ids in process; for dev and tests (one instance)
type MemoryDedupe struct {
	log  logger.Logger
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
	seen map[string]time.Time // event id -> expiry, zero -> never

	stopOnce sync.Once
	stopCh   chan struct{}
}

// ttl-how long an id stays seen, 0 -> forever;
// janitorEvery-how often expired ids are dropped, 0 -> never
func NewInMemoryDedupe(log logger.Logger, ttl, janitorEvery time.Duration) *MemoryDedupe {
	m := &MemoryDedupe{
		log:    log,
		ttl:    ttl,
		now:    time.Now,
		seen:   make(map[string]time.Time, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 && ttl > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *MemoryDedupe) IsDuplicate(_ context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	exp, ok := m.seen[eventID]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return exp.IsZero() || exp.After(m.now()), nil
}

func (m *MemoryDedupe) MarkSeen(_ context.Context, eventID string) error {
	var exp time.Time
	if m.ttl > 0 {
		exp = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.seen[eventID] = exp
	m.mu.Unlock()

	return nil
}

func (m *MemoryDedupe) Health(_ context.Context) error { return nil }

func (m *MemoryDedupe) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}

// sweep drops expired ids and returns how many were removed
func (m *MemoryDedupe) sweep() int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for id, exp := range m.seen {
		if !exp.IsZero() && !exp.After(now) {
			delete(m.seen, id)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}

func (m *MemoryDedupe) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			if n := m.sweep(); n > 0 {
				m.log.Debugf("Dedupe janitor dropped %d expired event ids", n)
			}
		}
	}
}

// Close stops the janitor (if running)
func (m *MemoryDedupe) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
