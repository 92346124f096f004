package service

import (
	"fmt"
	"testing"
	"time"

	"mnemo/internal/models"
)

func TestRecallCacheHitAndMiss(t *testing.T) {
	c := newRecallCache()
	key := recallKey("s1", "payments", 5)

	if _, ok := c.get(key); ok {
		t.Fatal("empty cache should miss")
	}

	facts := []*models.Fact{{ID: "f1"}}
	c.put(key, facts)

	got, ok := c.get(key)
	if !ok || len(got) != 1 || got[0].ID != "f1" {
		t.Errorf("expected cached facts, got %v (hit=%v)", got, ok)
	}

	// Same query with a different topK is a different entry.
	if _, ok := c.get(recallKey("s1", "payments", 10)); ok {
		t.Error("topK must be part of the cache key")
	}
}

func TestRecallCacheExpiry(t *testing.T) {
	c := newRecallCache()
	c.ttl = time.Millisecond
	key := recallKey("s1", "payments", 5)

	c.put(key, []*models.Fact{{ID: "f1"}})
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.get(key); ok {
		t.Error("expired entry should miss")
	}
	if c.len() != 0 {
		t.Errorf("expired entry should be evicted on read, len=%d", c.len())
	}
}

func TestRecallCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newRecallCache()
	c.cap = 2

	c.put(recallKey("s1", "a", 5), []*models.Fact{{ID: "a"}})
	c.put(recallKey("s1", "b", 5), []*models.Fact{{ID: "b"}})

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.get(recallKey("s1", "a", 5)); !ok {
		t.Fatal("expected a hit for 'a'")
	}

	c.put(recallKey("s1", "c", 5), []*models.Fact{{ID: "c"}})

	if _, ok := c.get(recallKey("s1", "b", 5)); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := c.get(recallKey("s1", "a", 5)); !ok {
		t.Error("recently used entry should survive")
	}
	if c.len() != 2 {
		t.Errorf("cache should hold exactly cap entries, len=%d", c.len())
	}
}

func TestRecallCacheUpdateExistingKey(t *testing.T) {
	c := newRecallCache()
	key := recallKey("s1", "a", 5)

	c.put(key, []*models.Fact{{ID: "old"}})
	c.put(key, []*models.Fact{{ID: "new"}})

	got, ok := c.get(key)
	if !ok || got[0].ID != "new" {
		t.Errorf("expected updated entry, got %v", got)
	}
	if c.len() != 1 {
		t.Errorf("update must not duplicate the entry, len=%d", c.len())
	}
}

func TestRecallCacheCapacityStress(t *testing.T) {
	c := newRecallCache()
	for i := 0; i < recallCacheCapacity*2; i++ {
		c.put(recallKey("s1", fmt.Sprintf("q%d", i), 5), nil)
	}
	if c.len() != recallCacheCapacity {
		t.Errorf("cache exceeded capacity: len=%d", c.len())
	}
}
