package shell

import (
	"context"
	"strings"
	"sync"

	"orientachat/internal/models"
)

// ConsentKey is where the cookie banner acceptance is remembered.
const ConsentKey = "cookieConsent"

// KVStore persists small string flags. Implementations live in storage
// (SQL table), redis and here (process memory).
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FeedbackStore records what visitors send from the feedback modal.
type FeedbackStore interface {
	Save(ctx context.Context, visitorID, text string) (*models.Feedback, error)
}

// MemoryStore is a KVStore that forgets everything on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			delete(m.values, k)
			n++
		}
	}
	return n, nil
}

// VisitorPrefix is the key prefix under which one visitor's flags are kept.
func VisitorPrefix(visitorID string) string {
	return "visitor:" + visitorID + ":"
}

type namespaced struct {
	inner  KVStore
	prefix string
}

// Namespace scopes a shared store to one visitor.
func Namespace(inner KVStore, visitorID string) KVStore {
	return namespaced{inner: inner, prefix: VisitorPrefix(visitorID)}
}

func (n namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}
