package centercache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/db"
	"github.com/kailas-cloud/modeld/internal/domain"
)

type mockEmbedder struct {
	center    []float32
	err       error
	loaded    bool
	loadErr   error
	dims      int
	calls     int
	loadCalls int
	freeCalls int
	lastWords []string
}

func (m *mockEmbedder) Load(context.Context) error {
	m.loadCalls++
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = true
	return nil
}

func (m *mockEmbedder) Free(context.Context) error {
	m.freeCalls++
	m.loaded = false
	return nil
}

func (m *mockEmbedder) Loaded() bool    { return m.loaded }
func (m *mockEmbedder) Dimensions() int { return m.dims }

func (m *mockEmbedder) Center(_ context.Context, words []string) ([]float32, error) {
	m.calls++
	m.lastWords = words
	if !m.loaded {
		return nil, domain.ErrModelNotLoaded
	}
	return m.center, m.err
}

// memStore implements the consumer interface for tests.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	incrErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	var n int64
	if v, ok := m.data[key]; ok {
		n = int64(v[0])
	}
	n += val
	m.data[key] = []byte{byte(n)}
	return n, nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *memStore) {
	t.Helper()
	ms := newMemStore()
	ce := New(inner, ms, Config{TTL: time.Hour, Logger: zap.NewNop()})
	return ce, ms
}
