// Package cache provides the bounded, time-limited memoization layer that sits
// between the assistant and its language-model backend.
//
// Memory is the in-process store: a FIFO queue capped at Config.MaxSize with
// lazy TTL expiry. ResponseCache wraps a Memory with key derivation and the
// get-or-compute contract, so repeated prompts are answered without another
// backend round-trip.
package cache

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

// Configuration errors returned by Config.Validate.
var (
	ErrInvalidMaxSize = errors.New("cache: max size must be greater than zero")
	ErrInvalidTTL     = errors.New("cache: ttl must not be negative")
)

// Config bounds a cache instance. It is fixed at construction.
type Config struct {
	// TTL is the maximum age at which an entry may still be returned.
	TTL time.Duration
	// MaxSize is the maximum number of entries held at once.
	MaxSize int
}

// DefaultConfig returns a five minute, one hundred entry configuration.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, MaxSize: DefaultMaxSize}
}

// Validate reports whether c can be used to build a cache.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxSize, c.MaxSize)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidTTL, c.TTL)
	}
	return nil
}

// Cache is the key-value contract shared by cache stores.
type Cache[V any] interface {
	Lookup(key Key) (V, bool)
	Store(key Key, value V)
	Delete(key Key)
	Len() int
	Clear()
}

// Entry is a stored value together with its insertion time.
type Entry[V any] struct {
	Key       Key
	Value     V
	CreatedAt time.Time
}

// EvictReason says why an entry left the store without an explicit Delete or Clear.
type EvictReason string

// EvictReason values.
const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

type options struct {
	now      func() time.Time
	onEvict  []func(Key, EvictReason)
	coalesce bool
}

// Option configures a Memory or ResponseCache.
type Option func(*options)

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEvictionHook registers fn to be called after an entry is evicted for
// capacity or removed on an expired lookup. fn runs without the store lock held.
func WithEvictionHook(fn func(Key, EvictReason)) Option {
	return func(o *options) {
		if fn != nil {
			o.onEvict = append(o.onEvict, fn)
		}
	}
}

// WithCoalescing makes concurrent misses for the same key share a single
// backend call. It only affects ResponseCache.
func WithCoalescing() Option {
	return func(o *options) {
		o.coalesce = true
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
