package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory(t *testing.T, maxSize int, ttl time.Duration, opts ...Option) (*Memory[string], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m, err := NewMemory[string](Config{TTL: ttl, MaxSize: maxSize}, append(opts, WithClock(clock.Now))...)
	require.NoError(t, err)
	return m, clock
}

func TestMemory_ImplementsCache(_ *testing.T) {
	var _ Cache[string] = (*Memory[string])(nil)
}

func TestNewMemory_InvalidConfig(t *testing.T) {
	_, err := NewMemory[string](Config{TTL: time.Minute, MaxSize: 0})
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = NewMemory[string](Config{TTL: time.Minute, MaxSize: -3})
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = NewMemory[string](Config{TTL: -time.Second, MaxSize: 10})
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.TTL)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.NoError(t, cfg.Validate())
}

func TestMemory_StoreAndLookup(t *testing.T) {
	m, _ := newTestMemory(t, 10, time.Minute)
	m.Store("k1", "ls -la")

	got, ok := m.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "ls -la", got)

	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	m, clock := newTestMemory(t, 10, time.Minute)
	m.Store("k1", "v1")

	clock.Advance(time.Minute)
	_, ok := m.Lookup("k1")
	assert.True(t, ok, "entry aged exactly ttl is still fresh")

	clock.Advance(time.Nanosecond)
	_, ok = m.Lookup("k1")
	assert.False(t, ok, "entry older than ttl must not be returned")
	assert.Equal(t, 0, m.Len(), "expired lookup removes the entry")
}

func TestMemory_ZeroTTL(t *testing.T) {
	m, clock := newTestMemory(t, 10, 0)
	m.Store("k1", "v1")

	_, ok := m.Lookup("k1")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = m.Lookup("k1")
	assert.False(t, ok)
}

func TestMemory_FIFOEviction(t *testing.T) {
	m, _ := newTestMemory(t, 3, time.Minute)
	for _, k := range []Key{"A", "B", "C", "D"} {
		m.Store(k, string(k))
	}

	assert.Equal(t, 3, m.Len())
	_, ok := m.Lookup("A")
	assert.False(t, ok, "first inserted key is evicted")
	_, ok = m.Lookup("D")
	assert.True(t, ok)
	assert.Equal(t, []Key{"B", "C", "D"}, m.Keys())
}

func TestMemory_AccessDoesNotRefreshPosition(t *testing.T) {
	m, _ := newTestMemory(t, 2, time.Minute)
	m.Store("a", "a")
	m.Store("b", "b")

	_, ok := m.Lookup("a")
	require.True(t, ok)

	m.Store("c", "c")

	_, ok = m.Lookup("a")
	assert.False(t, ok, "eviction follows insertion order, not access order")
	_, ok = m.Lookup("b")
	assert.True(t, ok)
}

func TestMemory_ReplaceKeepsPosition(t *testing.T) {
	m, clock := newTestMemory(t, 2, time.Minute)
	m.Store("a", "old")
	m.Store("b", "b")

	clock.Advance(30 * time.Second)
	m.Store("a", "new")
	assert.Equal(t, 2, m.Len(), "replace never duplicates")

	got, ok := m.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "new", got)

	m.Store("c", "c")
	_, ok = m.Lookup("a")
	assert.False(t, ok, "replaced key keeps its original queue position")
	assert.Equal(t, []Key{"b", "c"}, m.Keys())
}

func TestMemory_ReplaceRefreshesTimestamp(t *testing.T) {
	m, clock := newTestMemory(t, 2, time.Minute)
	m.Store("a", "old")

	clock.Advance(45 * time.Second)
	m.Store("a", "new")

	clock.Advance(45 * time.Second)
	got, ok := m.Lookup("a")
	require.True(t, ok, "replace resets createdAt")
	assert.Equal(t, "new", got)
}

func TestMemory_EvictionHook(t *testing.T) {
	type event struct {
		key    Key
		reason EvictReason
	}
	var events []event
	m, clock := newTestMemory(t, 1, time.Minute, WithEvictionHook(func(k Key, r EvictReason) {
		events = append(events, event{k, r})
	}))

	m.Store("a", "a")
	m.Store("b", "b")
	clock.Advance(2 * time.Minute)
	_, _ = m.Lookup("b")

	assert.Equal(t, []event{{"a", EvictCapacity}, {"b", EvictExpired}}, events)
}

func TestMemory_DeleteAndClear(t *testing.T) {
	m, _ := newTestMemory(t, 10, time.Minute)
	m.Store("a", "a")
	m.Store("b", "b")

	m.Delete("a")
	_, ok := m.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, ok = m.Lookup("b")
	assert.False(t, ok)

	m.Store("c", "c")
	assert.Equal(t, []Key{"c"}, m.Keys())
}

func TestMemory_Concurrent(t *testing.T) {
	m, _ := newTestMemory(t, 16, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key(fmt.Sprintf("k%d", i%32))
			m.Store(key, string(key))
			m.Lookup(key)
			m.Len()
			if i%17 == 0 {
				m.Clear()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 16)
}
