package cache

import (
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Local is a bounded in-process cache of raw payloads with per-entry expiry.
type Local struct {
	entries *lru.LRU[string, []byte]
}

// NewLocal builds a Local cache. A non-positive size disables it and returns nil.
func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &Local{entries: lru.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the payload stored under key.
func (l *Local) Get(key string) ([]byte, bool) {
	if l == nil {
		return nil, false
	}
	return l.entries.Get(key)
}

// Set stores payload under key.
func (l *Local) Set(key string, payload []byte) {
	if l == nil {
		return
	}
	l.entries.Add(key, payload)
}

// DeletePattern removes keys matching a glob pattern such as "nav:*".
func (l *Local) DeletePattern(pattern string) {
	if l == nil {
		return
	}
	for _, key := range l.entries.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			l.entries.Remove(key)
		}
	}
}

// Len reports the number of live entries.
func (l *Local) Len() int {
	if l == nil {
		return 0
	}
	return l.entries.Len()
}
