package speech

import "sync"

// Cache maps message ids to decoded audio. Entries are write-once and only
// ever dropped all together.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Buffer
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Buffer)}
}

func (c *Cache) Get(id string) (*Buffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buf, ok := c.entries[id]
	return buf, ok
}

// Put stores buf unless id already has an entry, and returns the entry that won.
func (c *Cache) Put(id string, buf *Buffer) *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[id]; ok {
		return existing
	}
	c.entries[id] = buf
	return buf
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Buffer)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
