// Package cache layers the search result cache.
//
// Tier one is a per-process LRU with no TTL: entries carry the index state
// hash they were computed under, and a state change turns them into misses
// on the next lookup. Tier two is a shared cache with TTL expiry and an
// invalidation broadcast topic, so a re-index in one process purges stale
// results everywhere. Anything neither tier holds falls through to
// recomputation against the store.
//
// The shared tier is optional and failure-tolerant: when it errors, the
// manager logs one warning, serves from the local tier, and retries it on
// subsequent calls.
package cache
