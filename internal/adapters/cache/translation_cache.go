package cache

import (
	"sync"
	"time"
)

const (
	// keyContentLimit caps how much of the source text participates in the
	// cache key
	keyContentLimit = 200

	defaultTranslationCapacity = 500
	defaultTranslationTTL      = time.Hour
)

type translationEntry struct {
	text     string
	storedAt time.Time
}

// TranslationCache is a bounded, TTL-based in-memory cache of prior
// translations. It is constructed explicitly and injected; safe for
// concurrent callers. Eviction removes the oldest-inserted entry, not the
// least recently used one, and nothing survives a process restart.
type TranslationCache struct {
	mu       sync.Mutex
	entries  map[string]translationEntry
	order    []string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewTranslationCache creates a translation cache with the default capacity
// (500 entries) and TTL (1 hour).
func NewTranslationCache() *TranslationCache {
	return NewTranslationCacheWithOptions(defaultTranslationCapacity, defaultTranslationTTL)
}

// NewTranslationCacheWithOptions allows overriding capacity and TTL (used
// for tests).
func NewTranslationCacheWithOptions(capacity int, ttl time.Duration) *TranslationCache {
	if capacity <= 0 {
		capacity = defaultTranslationCapacity
	}
	if ttl <= 0 {
		ttl = defaultTranslationTTL
	}
	return &TranslationCache{
		entries:  make(map[string]translationEntry, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached translation for (content, srcLang, dstLang).
// An entry older than the TTL is removed and reported as a miss.
func (c *TranslationCache) Get(content, srcLang, dstLang string) (string, bool) {
	key := cacheKey(content, srcLang, dstLang)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.remove(key)
		return "", false
	}
	return entry.text, true
}

// Put stores a translation, evicting the oldest-inserted entry first when
// at capacity.
func (c *TranslationCache) Put(content, srcLang, dstLang, text string) {
	key := cacheKey(content, srcLang, dstLang)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = translationEntry{text: text, storedAt: c.now()}
		return
	}

	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = translationEntry{text: text, storedAt: c.now()}
	c.order = append(c.order, key)
}

// Len returns the number of live entries
func (c *TranslationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TranslationCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func cacheKey(content, srcLang, dstLang string) string {
	runes := []rune(content)
	if len(runes) > keyContentLimit {
		runes = runes[:keyContentLimit]
	}
	return srcLang + "|" + dstLang + "|" + string(runes)
}
