// ABOUTME: Thread-safe TTL cache of mapping results awaiting download.
// ABOUTME: Results are keyed by a random token and only returned to the user who produced them.

// Package resultcache holds joined tables between the preview page and the export
// download so the upload does not have to be repeated.
package resultcache

import (
	"container/list"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/2389/labmap/internal/table"
)

// ErrNotFound is returned for unknown, expired or foreign tokens.
var ErrNotFound = errors.New("result not found or expired")

// Entry is a cached mapping result.
type Entry struct {
	Owner     string // uid of the user who ran the mapping
	Result    *table.Table
	CreatedAt time.Time
}

// cacheEntry stores an Entry and its list element.
type cacheEntry struct {
	Entry
	element *list.Element
}

// Cache is a TTL-based, size-limited store of mapping results.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // tokens in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a result cache with the given TTL and maximum number of entries.
// A background goroutine periodically removes expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Put stores result for owner and returns the download token. If the cache is
// at capacity, the oldest entry is evicted to make room.
func (c *Cache) Put(owner string, result *table.Table) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(token)
	c.entries[token] = &cacheEntry{
		Entry: Entry{
			Owner:     owner,
			Result:    result,
			CreatedAt: time.Now(),
		},
		element: elem,
	}
	return token, nil
}

// Get returns the entry for token when it exists, has not expired and belongs to owner.
func (c *Cache) Get(token, owner string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[token]
	if !ok || e.Owner != owner || time.Since(e.CreatedAt) >= c.ttl {
		return nil, ErrNotFound
	}
	entry := e.Entry
	return &entry, nil
}

// Len returns the number of entries, including expired ones not yet cleaned up.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	token, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, token)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for token, e := range c.entries {
		if now.Sub(e.CreatedAt) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, token)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
