package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	applog "lifehub/internal/log"
)

const keySep = "\x00"

// ViewCache holds rendered page data per owner and path. A path covers its
// query variants and everything beneath it, so invalidating /journal/b1 also
// drops /journal/b1/c1.
//
// Loads in flight carry a generation per key; Invalidate bumps it so a load
// that started before a mutation never stores its result.
type ViewCache struct {
	lru    *LRUCache[any]
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]*loadState
}

type loadState struct {
	gen     uint64
	loaders int
}

func NewViewCache(maxSize int, ttl time.Duration, logger *slog.Logger) *ViewCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewCache{
		lru:      NewLRUCache[any](maxSize, ttl),
		logger:   logger.With(applog.FieldComponent, applog.ComponentCache),
		inflight: make(map[string]*loadState),
	}
}

func viewKey(ownerID, path string) string {
	return ownerID + keySep + path
}

func (v *ViewCache) Get(ownerID, path string) (any, bool) {
	return v.lru.Get(viewKey(ownerID, path))
}

func (v *ViewCache) Set(ownerID, path string, data any) {
	v.lru.Set(viewKey(ownerID, path), data)
}

// Invalidate drops the given paths for ownerID, or for every owner when ownerID is empty.
func (v *ViewCache) Invalidate(ctx context.Context, ownerID string, paths ...string) {
	if len(paths) == 0 {
		return
	}
	match := func(key string) bool { return matches(key, ownerID, paths) }

	v.mu.Lock()
	for key, st := range v.inflight {
		if match(key) {
			st.gen++
		}
	}
	removed := v.lru.DeleteFunc(match)
	v.mu.Unlock()

	if removed > 0 {
		v.logger.DebugContext(ctx, "Views invalidated", applog.FieldOwnerID, ownerID, "paths", paths, "count", removed)
	}
}

func matches(key, ownerID string, paths []string) bool {
	owner, path, ok := strings.Cut(key, keySep)
	if !ok || (ownerID != "" && owner != ownerID) {
		return false
	}
	for _, p := range paths {
		if covers(p, path) {
			return true
		}
	}
	return false
}

func covers(prefix, path string) bool {
	if path == prefix {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	next := path[len(prefix)]
	return next == '/' || next == '?'
}

func (v *ViewCache) CleanExpired() int { return v.lru.CleanExpired() }

func (v *ViewCache) Size() int { return v.lru.Size() }

// begin registers a load for key and returns the generation it started at.
func (v *ViewCache) begin(key string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.inflight[key]
	if !ok {
		st = &loadState{}
		v.inflight[key] = st
	}
	st.loaders++
	return st.gen
}

// finish stores data unless key was invalidated since begin, and reports
// whether it did.
func (v *ViewCache) finish(key string, gen uint64, data any, store bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.inflight[key]
	fresh := st.gen == gen
	st.loaders--
	if st.loaders == 0 {
		delete(v.inflight, key)
	}
	if store && fresh {
		v.lru.Set(key, data)
		return true
	}
	return false
}

// Load returns the cached value for ownerID and path, or calls fill and
// caches its result. Errors are never cached, and neither is a result whose
// path was invalidated while fill ran.
func Load[T any](v *ViewCache, ownerID, path string, fill func() (T, error)) (T, error) {
	if v == nil {
		return fill()
	}
	if cached, ok := v.Get(ownerID, path); ok {
		if typed, ok := cached.(T); ok {
			return typed, nil
		}
	}

	key := viewKey(ownerID, path)
	gen := v.begin(key)
	val, err := fill()
	if !v.finish(key, gen, val, err == nil) && err == nil {
		v.logger.Debug("Discarded view loaded across an invalidation", applog.FieldOwnerID, ownerID, applog.FieldPath, path)
	}
	return val, err
}
