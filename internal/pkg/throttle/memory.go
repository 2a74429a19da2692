package throttle

import (
	"context"
	"sync"
	"time"
)

const (
	defaultIdleTTL     = 24 * time.Hour
	defaultJanitorTick = 10 * time.Minute
)

// Memory keeps attempt records in process memory. Records vanish on restart.
type Memory struct {
	mu      sync.Mutex
	records map[string]record
	now     func() time.Time
	idleTTL time.Duration
}

type MemoryOption func(*Memory)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIdleTTL sets how long an unblocked record may sit untouched before Prune drops it.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		records: make(map[string]record),
		now:     time.Now,
		idleTTL: defaultIdleTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Check(_ context.Context, key string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return Status{}, nil
	}
	return r.status(m.now()), nil
}

func (m *Memory) RecordFailure(_ context.Context, key string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	r := m.records[key].fail(now)
	m.records[key] = r
	return r.status(now), nil
}

func (m *Memory) RecordSuccess(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

// Prune drops unblocked records idle for longer than the idle TTL and
// returns how many were removed.
func (m *Memory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, r := range m.records {
		if now.Before(r.blockedUntil) {
			continue
		}
		if now.Sub(r.lastTry) > m.idleTTL {
			delete(m.records, key)
			removed++
		}
	}
	return removed
}

// RunJanitor calls Prune every interval until ctx is done.
func (m *Memory) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultJanitorTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
