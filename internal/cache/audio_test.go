package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestStoreAndGetRoundTrip(t *testing.T) {
	c := NewAudioCache()
	data := []byte("mp3 bytes")

	token := c.Store(data, DefaultTTL)
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}

	got := c.Get(token)
	if !bytes.Equal(got, data) {
		t.Fatalf("Get returned %q, want %q", got, data)
	}
}

func TestGetUnknownToken(t *testing.T) {
	c := NewAudioCache()
	if got := c.Get("deadbeef"); got != nil {
		t.Fatalf("Get for unknown token = %v, want nil", got)
	}
}

func TestGetExpiredTokenDeletes(t *testing.T) {
	c := NewAudioCache()
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	token := c.Store([]byte("x"), time.Minute)

	current = current.Add(2 * time.Minute)
	if got := c.Get(token); got != nil {
		t.Fatalf("Get after expiry = %v, want nil", got)
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len = %d", c.Len())
	}
}

func TestTokensAreUnique(t *testing.T) {
	c := NewAudioCache()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := c.Store([]byte("x"), DefaultTTL)
		if seen[token] {
			t.Fatalf("duplicate token %s", token)
		}
		seen[token] = true
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c := NewAudioCache()
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	expired := c.Store([]byte("old"), time.Minute)
	live := c.Store([]byte("new"), time.Hour)

	current = current.Add(10 * time.Minute)
	if removed := c.sweep(); removed != 1 {
		t.Fatalf("sweep removed %d entries, want 1", removed)
	}

	if c.Get(expired) != nil {
		t.Fatal("expired entry survived sweep")
	}
	if c.Get(live) == nil {
		t.Fatal("live entry removed by sweep")
	}
}
