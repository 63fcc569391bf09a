package dedupe

import (
	"fmt"
	"sync"
	"time"

	"github.com/tonkeeper/geocode-bot/internal/ntp"
)

// DefaultTTL is how long a message key is remembered.
const DefaultTTL = 300 * time.Second

// Key builds the cache key of a single chat message.
func Key(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// Cache remembers message keys for a TTL. Expired entries are purged on
// every lookup; there is no background sweeper.
type Cache struct {
	clock ntp.TimeProvider
	seen  map[string]time.Time // key -> first sighting
	mutex sync.Mutex
}

// NewCache creates an empty cache reading time from clock.
func NewCache(clock ntp.TimeProvider) *Cache {
	if clock == nil {
		clock = ntp.NewLocalTimeProvider()
	}
	return &Cache{
		clock: clock,
		seen:  make(map[string]time.Time),
	}
}

// SeenOnce reports whether key was already seen within ttl. A key that was
// not seen is recorded, so only the first call in a window returns false.
// A non-positive ttl disables deduplication.
func (c *Cache) SeenOnce(key string, ttl time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	for k, ts := range c.seen {
		if now.Sub(ts) > ttl || ttl <= 0 {
			delete(c.seen, k)
		}
	}

	if _, ok := c.seen[key]; ok {
		return true
	}
	if ttl > 0 {
		c.seen[key] = now
	}
	return false
}

// Len returns the number of remembered keys, expired ones included.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.seen)
}
