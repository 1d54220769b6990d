package chain

import (
	"context"
	"sync"
	"time"
)

// cacheTTL matches the original explorer's refresh window.
const cacheTTL = 5 * time.Minute

// CachedProvider memoizes FetchLatestAssets and falls back to the last good
// result when the upstream fails, so explorer views degrade instead of
// erroring.
type CachedProvider struct {
	Provider
	ttl time.Duration

	mu      sync.Mutex
	assets  []Asset
	fetched time.Time
}

// NewCachedProvider wraps a provider with the default TTL.
func NewCachedProvider(p Provider) *CachedProvider {
	return &CachedProvider{Provider: p, ttl: cacheTTL}
}

func (c *CachedProvider) FetchLatestAssets(ctx context.Context, n int) ([]Asset, error) {
	c.mu.Lock()
	fresh := !c.fetched.IsZero() && time.Since(c.fetched) < c.ttl
	cached := c.assets
	c.mu.Unlock()

	if fresh {
		return cached, nil
	}

	assets, err := c.Provider.FetchLatestAssets(ctx, n)
	if err != nil {
		// Serve stale data rather than failing the caller.
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.assets = assets
	c.fetched = time.Now()
	c.mu.Unlock()
	return assets, nil
}
