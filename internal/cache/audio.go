package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// DefaultTTL is how long synthesized audio stays retrievable.
const DefaultTTL = 5 * time.Minute

// sweepInterval bounds memory independent of read traffic.
const sweepInterval = 5 * time.Minute

type entry struct {
	data      []byte
	expiresAt time.Time
}

// AudioCache maps opaque high-entropy tokens to synthesized audio bytes.
// Entries expire lazily on read and eagerly via the background sweep. The
// cache owns the bytes it stores; callers must not mutate them afterwards.
type AudioCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewAudioCache creates an empty, isolated cache instance.
func NewAudioCache() *AudioCache {
	return &AudioCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Store inserts audio under a fresh 256-bit random token and returns the
// token (64 hex characters).
func (c *AudioCache) Store(data []byte, ttl time.Duration) string {
	token := newToken()

	c.mu.Lock()
	c.entries[token] = entry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return token
}

// Get returns the cached bytes for token, or nil when the token is unknown
// or expired. Expired entries are removed on the spot.
func (c *AudioCache) Get(token string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return nil
	}
	if e.expiresAt.Before(c.now()) {
		delete(c.entries, token)
		return nil
	}
	return e.data
}

// Len reports the number of live entries, expired or not.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweep runs the periodic eviction loop until ctx is cancelled.
func (c *AudioCache) StartSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.sweep(); removed > 0 {
					log.Printf("[cache] sweep removed %d expired audio entries", removed)
				}
			}
		}
	}()
}

func (c *AudioCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for token, e := range c.entries {
		if e.expiresAt.Before(now) {
			delete(c.entries, token)
			removed++
		}
	}
	return removed
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is unusable anyway.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
