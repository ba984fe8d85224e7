package services

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/internal/storage"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestStore opens a migrated SQLite store in a temp dir.
func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "cellar.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func newSeededStore(t *testing.T) storage.Store {
	t.Helper()
	store := newTestStore(t)
	_, err := storage.SeedIfEmpty(context.Background(), store)
	require.NoError(t, err)
	return store
}

// memoryKV is an in-process database.KeyValueStore.
type memoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
	hits   map[string][]time.Time
}

func newMemoryKV() *memoryKV {
	return &memoryKV{
		values: make(map[string][]byte),
		hits:   make(map[string][]time.Time),
	}
}

func (m *memoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, database.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryKV) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *memoryKV) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.values[key]), 10, 64)
	n++
	m.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *memoryKV) SlidingWindowHits(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.hits[key][:0]
	for _, h := range m.hits[key] {
		if h.After(now.Add(-window)) {
			kept = append(kept, h)
		}
	}
	count := int64(len(kept))
	m.hits[key] = append(kept, now)
	return count, nil
}

func (m *memoryKV) Ping(ctx context.Context) error {
	return nil
}

// MockKeyValueStore is a testify mock of database.KeyValueStore.
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockKeyValueStore) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockKeyValueStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockKeyValueStore) Incr(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockKeyValueStore) SlidingWindowHits(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, now, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockKeyValueStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
