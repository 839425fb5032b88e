package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranslationCache_PutThenGet(t *testing.T) {
	c := NewTranslationCache()

	c.Put("こんにちは", "ja", "en", "hello")

	got, ok := c.Get("こんにちは", "ja", "en")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = c.Get("こんにちは", "ja", "vi")
	assert.False(t, ok, "different target language must miss")
}

func TestTranslationCache_TTLExpiry(t *testing.T) {
	c := NewTranslationCacheWithOptions(10, time.Hour)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("hello", "en", "ja", "こんにちは")

	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, ok := c.Get("hello", "en", "ja")
	assert.True(t, ok, "entry within TTL must hit")

	c.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, ok = c.Get("hello", "en", "ja")
	assert.False(t, ok, "expired entry must miss")
	assert.Equal(t, 0, c.Len(), "expired entry must be removed on read")
}

func TestTranslationCache_CapacityBound(t *testing.T) {
	c := NewTranslationCacheWithOptions(2, time.Hour)

	c.Put("a", "en", "ja", "1")
	c.Put("b", "en", "ja", "2")
	c.Put("c", "en", "ja", "3")

	assert.Equal(t, 2, c.Len(), "cache must never grow past capacity")

	// Insertion-order eviction: the oldest entry goes first.
	_, ok := c.Get("a", "en", "ja")
	assert.False(t, ok)
	_, ok = c.Get("b", "en", "ja")
	assert.True(t, ok)
	_, ok = c.Get("c", "en", "ja")
	assert.True(t, ok)
}

func TestTranslationCache_NeverGrowsPastBound(t *testing.T) {
	c := NewTranslationCacheWithOptions(5, time.Hour)

	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("text-%d", i), "en", "ja", "x")
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestTranslationCache_KeyUsesContentPrefix(t *testing.T) {
	c := NewTranslationCache()

	long := make([]rune, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'あ')
	}
	a := string(long) + "tail-one"
	b := string(long) + "tail-two"

	c.Put(a, "ja", "en", "first")

	// Only the first 200 runes participate in the key, so the two long
	// texts collide.
	got, ok := c.Get(b, "ja", "en")
	assert.True(t, ok)
	assert.Equal(t, "first", got)
}
