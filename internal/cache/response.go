package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/termwise/termwise/internal/logging"
	"github.com/termwise/termwise/internal/metrics"
)

// Func performs the expensive backend call for in. It is invoked only on a
// cache miss and never while the cache holds a lock.
type Func[V any] func(ctx context.Context, in Inputs) (V, error)

// Result describes how a value was obtained.
type Result[V any] struct {
	Value V
	Key   Key
	// Hit is true when the value came from the store.
	Hit bool
	// Shared is true when the value came from another caller's in-flight
	// backend call. Only possible with WithCoalescing.
	Shared bool
}

// ResponseCache memoizes backend responses keyed by request inputs.
//
// Failed backend calls are never stored. Without WithCoalescing, concurrent
// misses for the same key each call the backend and the last one to finish
// overwrites the entry.
type ResponseCache[V any] struct {
	name     string
	store    *Memory[V]
	coalesce bool
	group    singleflight.Group
}

// NewResponseCache creates a ResponseCache named name. The name labels the
// cache's metrics and log lines.
func NewResponseCache[V any](name string, cfg Config, opts ...Option) (*ResponseCache[V], error) {
	c := &ResponseCache[V]{name: name}
	opts = append(opts, WithEvictionHook(c.recordEviction))
	store, err := NewMemory[V](cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("response cache %q: %w", name, err)
	}
	c.store = store
	c.coalesce = buildOptions(opts).coalesce
	metrics.CacheEntries.WithLabelValues(name).Set(0)
	return c, nil
}

// Name returns the cache name.
func (c *ResponseCache[V]) Name() string { return c.name }

// Config returns the cache bounds.
func (c *ResponseCache[V]) Config() Config { return c.store.Config() }

// GetOrCompute returns the cached value for in, or calls call, stores its
// result and returns it. Errors from call are returned unchanged.
func (c *ResponseCache[V]) GetOrCompute(ctx context.Context, in Inputs, call Func[V]) (V, error) {
	res, err := c.Fetch(ctx, in, call)
	return res.Value, err
}

// Fetch is GetOrCompute with details about where the value came from.
func (c *ResponseCache[V]) Fetch(ctx context.Context, in Inputs, call Func[V]) (Result[V], error) {
	key := DeriveKey(in)
	log := logging.FromContext(ctx).With("cache", c.name, "key", shortKey(key))

	if v, ok := c.Lookup(key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		log.Debug("cache hit")
		return Result[V]{Value: v, Key: key, Hit: true}, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	log.Debug("cache miss")

	if !c.coalesce {
		v, err := c.compute(ctx, key, in, call)
		if err != nil {
			return Result[V]{Key: key}, err
		}
		return Result[V]{Value: v, Key: key}, nil
	}

	// The call runs under the context of the caller that started it. Other
	// callers wait on the result but stop waiting when their own context ends.
	var led bool
	ch := c.group.DoChan(string(key), func() (interface{}, error) {
		led = true
		return c.compute(ctx, key, in, call)
	})
	select {
	case <-ctx.Done():
		return Result[V]{Key: key}, ctx.Err()
	case r := <-ch:
		shared := !led
		if shared {
			metrics.CacheCoalesced.WithLabelValues(c.name).Inc()
		}
		if r.Err != nil {
			return Result[V]{Key: key, Shared: shared}, r.Err
		}
		v, _ := r.Val.(V)
		return Result[V]{Value: v, Key: key, Shared: shared}, nil
	}
}

func (c *ResponseCache[V]) compute(ctx context.Context, key Key, in Inputs, call Func[V]) (V, error) {
	start := time.Now()
	v, err := call(ctx, in)
	if err != nil {
		metrics.BackendCalls.WithLabelValues(c.name, "error").Inc()
		logging.FromContext(ctx).Debug("backend call failed, not caching",
			"cache", c.name,
			"key", shortKey(key),
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return v, err
	}
	metrics.BackendCalls.WithLabelValues(c.name, "success").Inc()
	c.Store(key, v)
	return v, nil
}

// Lookup returns the fresh value stored under key, if any.
func (c *ResponseCache[V]) Lookup(key Key) (V, bool) {
	v, ok := c.store.Lookup(key)
	if !ok {
		metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.store.Len()))
	}
	return v, ok
}

// Store inserts or replaces the value for key.
func (c *ResponseCache[V]) Store(key Key, value V) {
	c.store.Store(key, value)
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.store.Len()))
}

// Clear removes every entry.
func (c *ResponseCache[V]) Clear() {
	c.store.Clear()
	metrics.CacheEntries.WithLabelValues(c.name).Set(0)
	logging.Logger.Debug("cache cleared", "cache", c.name)
}

// Size returns the current number of entries.
func (c *ResponseCache[V]) Size() int {
	return c.store.Len()
}

func (c *ResponseCache[V]) recordEviction(key Key, reason EvictReason) {
	metrics.CacheEvictions.WithLabelValues(c.name, string(reason)).Inc()
	logging.Logger.Debug("cache entry evicted", "cache", c.name, "key", shortKey(key), "reason", string(reason))
}

func shortKey(k Key) string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}
