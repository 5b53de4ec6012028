package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"orientachat/internal/logger"
	"orientachat/internal/service/shell"

	"go.uber.org/zap"
)

var ErrVisitorNotFound = errors.New("visitor not found")

const defaultVisitorIdle = 30 * time.Minute

// Builder creates the state of a visitor seen for the first time.
type Builder func(ctx context.Context, visitorID string) (*shell.Shell, error)

type Option func(*Manager)

// WithIdleTimeout sets how long an untouched visitor is kept in memory.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idle = d
		}
	}
}

// WithInvalidation shares visitor resets with other instances through bus.
func WithInvalidation(bus *Invalidator) Option {
	return func(m *Manager) { m.bus = bus }
}

// Purger erases stored keys under a prefix. All KV backends implement it.
type Purger interface {
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// WithPurger erases a reset visitor's stored flags, consent included.
func WithPurger(p Purger) Option {
	return func(m *Manager) { m.purger = p }
}

type visitor struct {
	shell    *shell.Shell
	lastUsed time.Time
}

// Manager keeps one shell per visitor and retires the ones left idle.
type Manager struct {
	build  Builder
	idle   time.Duration
	bus    *Invalidator
	purger Purger
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	closed   bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewManager(build Builder, opts ...Option) *Manager {
	m := &Manager{
		build:    build,
		idle:     defaultVisitorIdle,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus != nil {
		m.bus.listen(func(visitorID string) {
			debugLog("visitor invalidated remotely", zap.String("visitor_id", visitorID))
			m.drop(visitorID)
		})
	}
	go m.purgeIdleVisitors()
	return m
}

// Ensure returns the visitor's shell, building it on first use.
func (m *Manager) Ensure(ctx context.Context, visitorID string) (*shell.Shell, error) {
	if visitorID == "" {
		return nil, errors.New("visitor id required")
	}
	if sh, err := m.Get(visitorID); err == nil {
		return sh, nil
	}

	// Building talks to the chat provider, so it happens outside the lock.
	built, err := m.build(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		built.Close()
		return nil, errors.New("manager closed")
	}
	if v, ok := m.visitors[visitorID]; ok {
		v.lastUsed = m.now()
		m.mu.Unlock()
		built.Close()
		return v.shell, nil
	}
	m.visitors[visitorID] = &visitor{shell: built, lastUsed: m.now()}
	m.mu.Unlock()
	debugLog("visitor created", zap.String("visitor_id", visitorID))
	return built, nil
}

// Get returns a known visitor's shell and marks it as used.
func (m *Manager) Get(visitorID string) (*shell.Shell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[visitorID]
	if !ok {
		return nil, ErrVisitorNotFound
	}
	v.lastUsed = m.now()
	return v.shell, nil
}

// Reset discards a visitor everywhere. The next request starts from the
// landing view with a fresh conversation.
func (m *Manager) Reset(ctx context.Context, visitorID string) error {
	found := m.drop(visitorID)
	if m.purger != nil {
		n, err := m.purger.DeletePrefix(ctx, shell.VisitorPrefix(visitorID))
		if err != nil {
			logger.Get().Warn("purge visitor keys", zap.String("visitor_id", visitorID), zap.Error(err))
		} else if n > 0 {
			found = true
		}
	}
	if m.bus != nil {
		m.bus.publish(ctx, visitorID)
	}
	if !found {
		return ErrVisitorNotFound
	}
	return nil
}

func (m *Manager) drop(visitorID string) bool {
	m.mu.Lock()
	v, ok := m.visitors[visitorID]
	delete(m.visitors, visitorID)
	m.mu.Unlock()
	if ok {
		v.shell.Close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// Close retires every visitor and stops the purge loop and the listener.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.bus != nil {
		m.bus.stop()
	}
	m.mu.Lock()
	m.closed = true
	visitors := m.visitors
	m.visitors = make(map[string]*visitor)
	m.mu.Unlock()
	for _, v := range visitors {
		v.shell.Close()
	}
}

// purgeIdleVisitors calls shutdownExpired when expiry time comes
func (m *Manager) purgeIdleVisitors() {
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.shutdownExpired()
		}
	}
}

// shutdownExpired retires every visitor idle for longer than the timeout.
// Visitors with a reply still streaming are kept.
func (m *Manager) shutdownExpired() int {
	var stale []*visitor
	now := m.now()

	m.mu.Lock()
	for id, v := range m.visitors {
		if now.Sub(v.lastUsed) < m.idle || v.shell.State().Busy {
			continue
		}
		delete(m.visitors, id)
		stale = append(stale, v)
	}
	m.mu.Unlock()

	for _, v := range stale {
		v.shell.Close()
	}
	if len(stale) > 0 {
		debugLog("idle visitors purged", zap.Int("count", len(stale)))
	}
	return len(stale)
}
