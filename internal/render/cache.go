package render

import (
	"html/template"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/JakeFAU/blog-ssr/internal/metrics"
)

const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 15 * time.Minute
)

// Cache holds rendered component output, bounded by entry count and age.
// Keys are scoped to the renderer generation that produced them, so a
// renderer still finishing requests after a rebuild cannot feed entries to
// its replacement.
type Cache struct {
	lru        *expirable.LRU[string, template.HTML]
	generation atomic.Uint64
}

// NewCache builds a cache; non-positive arguments use the defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lru: expirable.NewLRU[string, template.HTML](size, nil, ttl)}
}

func (c *Cache) get(key string) (template.HTML, bool) {
	html, ok := c.lru.Get(key)
	metrics.ObserveCacheLookup(ok)
	return html, ok
}

func (c *Cache) add(key string, html template.HTML) {
	c.lru.Add(key, html)
}

// nextGeneration drops every entry and returns a fresh key scope.
func (c *Cache) nextGeneration() uint64 {
	gen := c.generation.Add(1)
	c.lru.Purge()
	return gen
}

func scopedKey(gen uint64, key string) string {
	return strconv.FormatUint(gen, 10) + "::" + key
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
