package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	pkgredis "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/redis"
)

type memoryKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memoryKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fixedVersion struct{ v atomic.Uint64 }

func (f *fixedVersion) Version() uint64 { return f.v.Load() }

var flu = content.Resolution{EntryID: "condition-flu", Source: content.SourceAlias, Confidence: 95}

func TestGetOrResolveCachesResults(t *testing.T) {
	c := New(newMemoryKV(), &fixedVersion{}, time.Minute)
	calls := 0
	resolve := func() (content.Resolution, bool) {
		calls++
		return flu, true
	}

	res, ok, hit := c.GetOrResolve(context.Background(), "Gripe", "es", resolve)
	require.True(t, ok)
	assert.False(t, hit)
	assert.Equal(t, flu, res)

	res, ok, hit = c.GetOrResolve(context.Background(), "  Gripe ", "spa", resolve)
	require.True(t, ok)
	assert.True(t, hit, "trimmed input and normalised language share a key")
	assert.Equal(t, flu, res)
	assert.Equal(t, 1, calls)

	_, _, hit = c.GetOrResolve(context.Background(), "gripe", "", resolve)
	assert.False(t, hit, "language is part of the key")

	assert.Equal(t, Stats{Hits: 1, Misses: 4}, c.Stats())
}

func TestGetOrResolveCachesMisses(t *testing.T) {
	c := New(newMemoryKV(), &fixedVersion{}, time.Minute)
	calls := 0
	resolve := func() (content.Resolution, bool) {
		calls++
		return content.Resolution{}, false
	}

	_, ok, _ := c.GetOrResolve(context.Background(), "zzz", "", resolve)
	assert.False(t, ok)
	_, ok, hit := c.GetOrResolve(context.Background(), "zzz", "", resolve)
	assert.False(t, ok)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestKeyPreservesInputCase(t *testing.T) {
	c := New(newMemoryKV(), &fixedVersion{}, time.Minute)
	bySlug := content.Resolution{EntryID: "condition-flu", Source: content.SourceSlug, Confidence: 90}
	byID := content.Resolution{EntryID: "condition-flu", Source: content.SourceExactID, Confidence: 100}

	res, ok, _ := c.GetOrResolve(context.Background(), "CONDITION-FLU", "", func() (content.Resolution, bool) {
		return bySlug, true
	})
	require.True(t, ok)
	assert.Equal(t, bySlug, res)

	res, ok, hit := c.GetOrResolve(context.Background(), "condition-flu", "", func() (content.Resolution, bool) {
		return byID, true
	})
	require.True(t, ok)
	assert.False(t, hit, "inputs differing only in case use separate keys")
	assert.Equal(t, byID, res)
}

func TestCancelledResolutionIsNotCached(t *testing.T) {
	kv := newMemoryKV()
	c := New(kv, &fixedVersion{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, _ := c.GetOrResolve(ctx, "flu", "", func() (content.Resolution, bool) {
		return content.Resolution{}, false
	})
	assert.False(t, ok)
	assert.Empty(t, kv.data)

	res, ok, hit := c.GetOrResolve(context.Background(), "flu", "", func() (content.Resolution, bool) {
		return flu, true
	})
	require.True(t, ok)
	assert.False(t, hit)
	assert.Equal(t, flu, res)
}

func TestCancelledLeaderDoesNotLeakToWaiters(t *testing.T) {
	kv := newMemoryKV()
	c := New(kv, &fixedVersion{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	entered := make(chan struct{})
	release := make(chan struct{})

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, ok, _ := c.GetOrResolve(ctx, "flu", "", func() (content.Resolution, bool) {
			close(entered)
			<-release
			return content.Resolution{}, false
		})
		assert.False(t, ok)
	}()
	<-entered

	type outcome struct {
		res content.Resolution
		ok  bool
	}
	waiter := make(chan outcome, 1)
	go func() {
		res, ok, _ := c.GetOrResolve(context.Background(), "flu", "", func() (content.Resolution, bool) {
			return flu, true
		})
		waiter <- outcome{res, ok}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)
	<-leaderDone

	got := <-waiter
	require.True(t, got.ok)
	assert.Equal(t, flu, got.res)

	res, ok, hit := c.GetOrResolve(context.Background(), "flu", "", func() (content.Resolution, bool) {
		return content.Resolution{}, false
	})
	require.True(t, ok)
	assert.True(t, hit)
	assert.Equal(t, flu, res)
}

func TestStoreVersionChangesKey(t *testing.T) {
	version := &fixedVersion{}
	c := New(newMemoryKV(), version, time.Minute)
	calls := 0
	resolve := func() (content.Resolution, bool) {
		calls++
		return flu, true
	}

	c.GetOrResolve(context.Background(), "flu", "", resolve)
	version.v.Add(1)
	_, _, hit := c.GetOrResolve(context.Background(), "flu", "", resolve)

	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestBackendErrorsFallBackToResolver(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errors.New("connection refused")
	c := New(kv, nil, time.Minute)

	res, ok, hit := c.GetOrResolve(context.Background(), "flu", "", func() (content.Resolution, bool) {
		return flu, true
	})

	assert.True(t, ok)
	assert.False(t, hit)
	assert.Equal(t, flu, res)
	assert.Equal(t, int64(2), c.Stats().Errors)
}

func TestConcurrentMissesResolveOnce(t *testing.T) {
	c := New(newMemoryKV(), &fixedVersion{}, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	resolve := func() (content.Resolution, bool) {
		calls.Add(1)
		<-release
		return flu, true
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, ok, _ := c.GetOrResolve(context.Background(), "flu", "", resolve)
			assert.True(t, ok)
			assert.Equal(t, flu, res)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestInvalidate(t *testing.T) {
	kv := newMemoryKV()
	kv.data["other:key"] = "x"
	c := New(kv, nil, time.Minute)
	c.GetOrResolve(context.Background(), "flu", "", func() (content.Resolution, bool) { return flu, true })
	c.GetOrResolve(context.Background(), "asthma", "", func() (content.Resolution, bool) { return flu, true })

	deleted, err := c.Invalidate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Contains(t, kv.data, "other:key")
}

func TestCountersCallbacks(t *testing.T) {
	var hits, misses int
	c := New(newMemoryKV(), nil, time.Minute, WithCounters(func() { hits++ }, func() { misses++ }))
	resolve := func() (content.Resolution, bool) { return flu, true }

	c.GetOrResolve(context.Background(), "flu", "", resolve)
	c.GetOrResolve(context.Background(), "flu", "", resolve)

	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}
