package service

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"mnemo/internal/models"
)

const (
	// recallCacheCapacity bounds the number of cached recall results.
	recallCacheCapacity = 256
	// recallCacheTTL keeps results fresh enough that newly promoted facts
	// show up within a batch interval.
	recallCacheTTL = 30 * time.Second
)

// recallCache is a TTL-bounded LRU of recall results keyed by session and
// query. Recall is read-heavy and repeated within a session; caching a few
// seconds of results keeps the hot path off the vector store.
type recallCache struct {
	mu    sync.Mutex
	ll    *list.List
	index map[string]*list.Element
	ttl   time.Duration
	cap   int
}

type recallEntry struct {
	key     string
	facts   []*models.Fact
	expires time.Time
}

func newRecallCache() *recallCache {
	return &recallCache{
		ll:    list.New(),
		index: make(map[string]*list.Element),
		ttl:   recallCacheTTL,
		cap:   recallCacheCapacity,
	}
}

func recallKey(sessionID, query string, topK int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", sessionID, query, topK)
}

// get returns the cached facts for a key, evicting it if expired.
func (c *recallCache) get(key string) ([]*models.Fact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := element.Value.(*recallEntry)
	if time.Now().After(entry.expires) {
		c.ll.Remove(element)
		delete(c.index, key)
		return nil, false
	}
	c.ll.MoveToFront(element)
	return entry.facts, true
}

// put stores recall results, evicting the least recently used entries past
// capacity.
func (c *recallCache) put(key string, facts []*models.Fact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.index[key]; ok {
		entry := element.Value.(*recallEntry)
		entry.facts = facts
		entry.expires = time.Now().Add(c.ttl)
		c.ll.MoveToFront(element)
		return
	}

	element := c.ll.PushFront(&recallEntry{
		key:     key,
		facts:   facts,
		expires: time.Now().Add(c.ttl),
	})
	c.index[key] = element

	for c.ll.Len() > c.cap {
		back := c.ll.Back()
		c.ll.Remove(back)
		delete(c.index, back.Value.(*recallEntry).key)
	}
}

func (c *recallCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
