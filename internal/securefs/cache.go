package securefs

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache lifetimes. Absolute paths depend only on the working directory and
// are stable; containment checks touch the filesystem and expire sooner.
const (
	absPathTTL    = 30 * time.Minute
	withinBaseTTL = 5 * time.Minute
	validateTTL   = 30 * time.Minute
)

// CacheStats reports cache usage for monitoring
type CacheStats struct {
	AbsPathEntries    int
	WithinBaseEntries int
	ValidateEntries   int
	Hits              uint64
	Misses            uint64
}

// PathCache memoizes path resolution and validation results
type PathCache struct {
	absPaths   *cache.Cache
	withinBase *cache.Cache
	validated  *cache.Cache
	hits       atomic.Uint64
	misses     atomic.Uint64
}

// NewPathCache creates an empty cache. A cache lives as long as one sandbox,
// so expired entries are never swept and no janitor goroutine is started.
func NewPathCache() *PathCache {
	return &PathCache{
		absPaths:   cache.New(absPathTTL, cache.NoExpiration),
		withinBase: cache.New(withinBaseTTL, cache.NoExpiration),
		validated:  cache.New(validateTTL, cache.NoExpiration),
	}
}

// GetAbsPath returns the cached absolute form of path, computing it with resolve on a miss
func (pc *PathCache) GetAbsPath(path string, resolve func(string) (string, error)) (string, error) {
	if v, ok := pc.absPaths.Get(path); ok {
		pc.hits.Add(1)
		return v.(string), nil
	}
	pc.misses.Add(1)

	abs, err := resolve(path)
	if err != nil {
		return "", err
	}
	pc.absPaths.SetDefault(path, abs)
	return abs, nil
}

// GetWithinBase returns the cached containment result for key, computing it with check on a miss.
// Errors are not cached.
func (pc *PathCache) GetWithinBase(key string, check func() (bool, error)) (bool, error) {
	if v, ok := pc.withinBase.Get(key); ok {
		pc.hits.Add(1)
		return v.(bool), nil
	}
	pc.misses.Add(1)

	within, err := check()
	if err != nil {
		return false, err
	}
	pc.withinBase.SetDefault(key, within)
	return within, nil
}

// validateResult holds both outcomes of a relative path validation
type validateResult struct {
	path string
	err  error
}

// GetValidatePath returns the cached validation of a relative path. Rejections
// are cached too since validation is purely lexical.
func (pc *PathCache) GetValidatePath(path string, validate func(string) (string, error)) (string, error) {
	if v, ok := pc.validated.Get(path); ok {
		pc.hits.Add(1)
		r := v.(validateResult)
		return r.path, r.err
	}
	pc.misses.Add(1)

	cleaned, err := validate(path)
	pc.validated.SetDefault(path, validateResult{path: cleaned, err: err})
	return cleaned, err
}

// Invalidate drops containment results, e.g. after directories were created or removed
func (pc *PathCache) Invalidate() {
	pc.withinBase.Flush()
}

// GetCacheStats returns current cache statistics
func (pc *PathCache) GetCacheStats() CacheStats {
	return CacheStats{
		AbsPathEntries:    pc.absPaths.ItemCount(),
		WithinBaseEntries: pc.withinBase.ItemCount(),
		ValidateEntries:   pc.validated.ItemCount(),
		Hits:              pc.hits.Load(),
		Misses:            pc.misses.Load(),
	}
}
