package permcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// FetchFunc performs the remote permission lookup for one identity id.
type FetchFunc func(ctx context.Context, identityID string) ([]string, error)

// Fetcher deduplicates concurrent permission fetches per identity id and
// caches successful results with a TTL. The zero value is not usable; create
// instances with [New].
type Fetcher struct {
	group   singleflight.Group
	results *lru.LRU[string, []string]
}

// New creates a Fetcher caching up to size successful results for ttl.
func New(size int, ttl time.Duration) *Fetcher {
	if size <= 0 {
		size = 1
	}
	return &Fetcher{
		results: lru.NewLRU[string, []string](size, nil, ttl),
	}
}

// Fetch returns the permission tokens for identityID, serving concurrent
// callers for the same id from a single in-flight remote call. Order of the
// returned sequence is the order the source reported.
func (f *Fetcher) Fetch(ctx context.Context, identityID string, fetch FetchFunc) ([]string, error) {
	if cached, ok := f.results.Get(identityID); ok {
		return clonePermissions(cached), nil
	}

	v, err, _ := f.group.Do(identityID, func() (interface{}, error) {
		// Re-check under the flight lock: a racing caller may have
		// populated the cache between the lookup above and Do.
		if cached, ok := f.results.Get(identityID); ok {
			return cached, nil
		}

		perms, fetchErr := fetch(ctx, identityID)
		if fetchErr != nil {
			// Nothing is cached on failure; the next call retries.
			return nil, fetchErr
		}
		if perms == nil {
			perms = []string{}
		}
		f.results.Add(identityID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}

	return clonePermissions(v.([]string)), nil
}

// Invalidate drops the cached result for one identity id.
func (f *Fetcher) Invalidate(identityID string) {
	f.results.Remove(identityID)
	f.group.Forget(identityID)
}

// Purge drops every cached result.
func (f *Fetcher) Purge() {
	f.results.Purge()
}

// Len reports the number of cached results.
func (f *Fetcher) Len() int {
	return f.results.Len()
}

func clonePermissions(perms []string) []string {
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
