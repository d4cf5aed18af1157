// Package cache holds the two read-path caches: rendered article HTML
// keyed by (article id, language), and enhanced-highlight snippets keyed
// by (article id, query). Both expire by TTL; hit/miss counts flow into
// the Prometheus cache metrics rather than package-local counters.
package cache

import (
	"sync"
	"time"

	"github.com/tmoreau/marginalia/internal/metrics"
)

const defaultCapacity = 2048

type renderKey struct {
	id   string
	lang string
}

type snippetKey struct {
	id    string
	query string
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is the shared render/snippet cache. A ttl <= 0 disables caching
// entirely; every lookup misses and every store is a no-op, which tests
// use to exercise the uncached paths.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	html     map[renderKey]entry
	snippets map[snippetKey]entry
}

// New builds a cache whose entries expire after ttl, holding at most
// capacity entries per kind (render, snippet). Capacity <= 0 falls back
// to a default bound; the cache is never unbounded.
func New(ttl time.Duration, capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		html:     make(map[renderKey]entry),
		snippets: make(map[snippetKey]entry),
	}
}

func (c *Cache) disabled() bool { return c == nil || c.ttl <= 0 }

// HTML returns the cached rendered HTML for one article and language.
func (c *Cache) HTML(id, lang string) (string, bool) {
	if c.disabled() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.html, renderKey{id: id, lang: lang}, "render")
}

// SetHTML stores rendered HTML for one article and language.
func (c *Cache) SetHTML(id, lang, html string) {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	put(c.html, renderKey{id: id, lang: lang}, html, c.ttl, c.capacity)
}

// Snippet returns the cached enhanced-highlight snippet for one article
// and query string.
func (c *Cache) Snippet(id, query string) (string, bool) {
	if c.disabled() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.snippets, snippetKey{id: id, query: query}, "snippet")
}

// SetSnippet stores an enhanced-highlight snippet for one article and
// query string.
func (c *Cache) SetSnippet(id, query, snippet string) {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	put(c.snippets, snippetKey{id: id, query: query}, snippet, c.ttl, c.capacity)
}

// lookup fetches one live entry, evicting it in place if expired. Callers
// hold the cache lock.
func lookup[K comparable](m map[K]entry, key K, kind string) (string, bool) {
	e, ok := m[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(kind).Inc()
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(m, key)
		metrics.CacheMisses.WithLabelValues(kind).Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues(kind).Inc()
	return e.value, true
}

// put stores one entry, first sweeping expired entries when the map is at
// capacity, then dropping arbitrary entries if the sweep freed nothing.
// Callers hold the cache lock.
func put[K comparable](m map[K]entry, key K, value string, ttl time.Duration, capacity int) {
	if len(m) >= capacity {
		sweep(m)
	}
	for k := range m {
		if len(m) < capacity {
			break
		}
		delete(m, k)
	}
	m[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func sweep[K comparable](m map[K]entry) {
	now := time.Now()
	for k, e := range m {
		if now.After(e.expiresAt) {
			delete(m, k)
		}
	}
}
