// ABOUTME: LRU cache in front of an IconResolver so tree refreshes do not re-download icons
// ABOUTME: Misses are cached too, keyed by the full candidate list

package service

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"greader-sync/models"
)

type cachedIcon struct {
	icon  []byte
	found bool
}

// CachedIconResolver memoizes another resolver for ttl
type CachedIconResolver struct {
	next  IconResolver
	cache *expirable.LRU[string, cachedIcon]
}

// NewCachedIconResolver wraps next with an LRU of size entries
func NewCachedIconResolver(next IconResolver, size int, ttl time.Duration) *CachedIconResolver {
	if size <= 0 {
		size = 512
	}
	return &CachedIconResolver{
		next:  next,
		cache: expirable.NewLRU[string, cachedIcon](size, nil, ttl),
	}
}

func (c *CachedIconResolver) Resolve(ctx context.Context, candidates []models.IconCandidate) ([]byte, error) {
	key := iconCacheKey(candidates)
	if hit, ok := c.cache.Get(key); ok {
		if !hit.found {
			return nil, ErrNoIcon
		}
		return hit.icon, nil
	}

	icon, err := c.next.Resolve(ctx, candidates)
	if err != nil {
		// a cancelled refresh says nothing about the icon
		if ctx.Err() == nil {
			c.cache.Add(key, cachedIcon{})
		}
		return nil, err
	}
	c.cache.Add(key, cachedIcon{icon: icon, found: true})
	return icon, nil
}

// Len returns the number of cached entries
func (c *CachedIconResolver) Len() int {
	return c.cache.Len()
}

func iconCacheKey(candidates []models.IconCandidate) string {
	var b strings.Builder
	for _, candidate := range candidates {
		if candidate.Direct {
			b.WriteString("d:")
		} else {
			b.WriteString("p:")
		}
		b.WriteString(candidate.URL)
		b.WriteByte('\n')
	}
	return b.String()
}
