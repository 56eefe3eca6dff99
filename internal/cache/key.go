package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Key identifies a cached response. It is the hex SHA-256 digest of the
// request inputs.
type Key string

// Turn is one prior message in the conversation transcript.
type Turn struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Inputs holds every caller-supplied value that affects the backend answer.
type Inputs struct {
	Prompt   string `json:"prompt"`
	History  []Turn `json:"history,omitempty"`
	Language string `json:"language,omitempty"`
}

// DeriveKey returns the cache key for in. Each field is written with a length
// prefix, so two inputs share a key only when every field is equal and the
// history turns appear in the same order. A nil history and an empty one
// produce the same key.
func DeriveKey(in Inputs) Key {
	h := sha256.New()
	writeField(h, in.Prompt)
	writeField(h, in.Language)
	writeLen(h, len(in.History))
	for _, t := range in.History {
		writeField(h, t.Role)
		writeField(h, t.Content)
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, s string) {
	writeLen(h, len(s))
	_, _ = h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	var buf [binary.MaxVarintLen64]byte
	_, _ = h.Write(buf[:binary.PutUvarint(buf[:], uint64(n))])
}
