package memory

import (
	"context"
	"sync"
	"time"

	"example.com/campusevents/internal/storage"
)

type claimEntry struct {
	claim   storage.Claim
	expires time.Time
}

// Claims is an in-process ClaimStore for tests and single-node runs.
type Claims struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	now     func() time.Time
}

var _ storage.ClaimStore = (*Claims)(nil)

func NewClaims() *Claims {
	return &Claims{entries: make(map[string]claimEntry), now: time.Now}
}

func (c *Claims) PutClaim(_ context.Context, token string, cl storage.Claim, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = claimEntry{claim: cl, expires: c.now().Add(ttl)}
	return nil
}

func (c *Claims) GetClaim(_ context.Context, token string) (storage.Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[token]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, token)
		return storage.Claim{}, storage.ErrNotFound
	}
	return e.claim, nil
}

func (c *Claims) DeleteClaim(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	return nil
}

// Len reports the number of stored tokens, expired ones included.
func (c *Claims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
