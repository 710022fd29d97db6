package lookup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/textproc"
)

type cacheEntry struct {
	result    Result
	createdAt time.Time
	expiresAt time.Time
}

// Cache keeps lookup results in memory so repeated sentences skip the network.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return Result{}, false
	}
	return entry.result, true
}

func (c *Cache) Set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = &cacheEntry{
		result:    result,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest drops expired entries, or the oldest one if none expired. Caller holds mu.
func (c *Cache) evictOldest() {
	now := c.now()
	var (
		oldestKey  string
		oldestTime time.Time
		expired    bool
	)

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			expired = true
			continue
		}
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if !expired && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func cacheKey(stage models.Stage, sentence string) string {
	h := sha256.New()
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte(textproc.Normalize(sentence)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

type cachedSearcher struct {
	next  Searcher
	cache *Cache
}

// WithCache wraps a Searcher so successful lookups are served from cache.
// Errors are never cached.
func WithCache(next Searcher, cache *Cache) Searcher {
	if cache == nil {
		return next
	}
	return &cachedSearcher{next: next, cache: cache}
}

func (s *cachedSearcher) Stage() models.Stage {
	return s.next.Stage()
}

func (s *cachedSearcher) Search(ctx context.Context, sentence string) (Result, error) {
	key := cacheKey(s.next.Stage(), sentence)
	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	res, err := s.next.Search(ctx, sentence)
	if err != nil {
		return Result{}, err
	}

	s.cache.Set(key, res)
	return res, nil
}
