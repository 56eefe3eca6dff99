package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type evicted struct {
	key    Key
	reason EvictReason
}

// Memory is a thread-safe in-memory FIFO cache with TTL expiration.
//
// Entries leave the queue in insertion order. Storing a key that is already
// present replaces its value and timestamp but keeps its place in the queue,
// so reads and rewrites never postpone eviction.
type Memory[V any] struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	onEvict []func(Key, EvictReason)
	items   map[Key]*list.Element
	queue   *list.List
}

// NewMemory creates a Memory bounded by cfg. It fails if cfg is invalid.
func NewMemory[V any](cfg Config, opts ...Option) (*Memory[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Memory[V]{
		cfg:     cfg,
		now:     o.now,
		onEvict: o.onEvict,
		items:   make(map[Key]*list.Element, cfg.MaxSize),
		queue:   list.New(),
	}, nil
}

// Config returns the bounds the store was built with.
func (m *Memory[V]) Config() Config {
	return m.cfg
}

// Lookup returns the value for key when it exists and is no older than the
// TTL. An expired entry is removed.
func (m *Memory[V]) Lookup(key Key) (V, bool) {
	var zero V
	m.mu.Lock()
	elem, ok := m.items[key]
	if !ok {
		m.mu.Unlock()
		return zero, false
	}
	entry := elem.Value.(*Entry[V])
	if m.now().Sub(entry.CreatedAt) > m.cfg.TTL {
		m.removeElement(elem)
		m.mu.Unlock()
		m.notify(evicted{key: key, reason: EvictExpired})
		return zero, false
	}
	value := entry.Value
	m.mu.Unlock()
	return value, true
}

// Store inserts or replaces the value for key. Inserting a new key into a
// full store evicts the oldest inserted entry.
func (m *Memory[V]) Store(key Key, value V) {
	m.mu.Lock()
	now := m.now()
	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*Entry[V])
		entry.Value = value
		entry.CreatedAt = now
		m.mu.Unlock()
		return
	}

	m.items[key] = m.queue.PushBack(&Entry[V]{Key: key, Value: value, CreatedAt: now})

	var out []evicted
	if m.queue.Len() > m.cfg.MaxSize {
		oldest := m.queue.Front()
		out = append(out, evicted{key: oldest.Value.(*Entry[V]).Key, reason: EvictCapacity})
		m.removeElement(oldest)
	}
	if n := m.queue.Len(); n > m.cfg.MaxSize || n != len(m.items) {
		m.mu.Unlock()
		panic(fmt.Sprintf("cache: store holds %d entries (%d indexed) with max size %d", n, len(m.items), m.cfg.MaxSize))
	}
	m.mu.Unlock()
	m.notify(out...)
}

// Delete removes the entry for key if present.
func (m *Memory[V]) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Clear removes all entries.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[Key]*list.Element, m.cfg.MaxSize)
	m.queue.Init()
}

// Keys returns the stored keys from oldest to newest insertion.
func (m *Memory[V]) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, m.queue.Len())
	for e := m.queue.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*Entry[V]).Key)
	}
	return keys
}

// removeElement must be called with m.mu held.
func (m *Memory[V]) removeElement(elem *list.Element) {
	m.queue.Remove(elem)
	delete(m.items, elem.Value.(*Entry[V]).Key)
}

func (m *Memory[V]) notify(events ...evicted) {
	for _, ev := range events {
		for _, fn := range m.onEvict {
			fn(ev.key, ev.reason)
		}
	}
}
