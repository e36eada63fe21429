// Package cache provides a small, thread-safe in-process cache with LRU
// eviction and per-entry TTL expiry.
//
// It backs read-heavy lookups on the access path (surface bindings,
// resolved feature sets) where a bounded, slightly stale view is
// acceptable and a network round trip per gate check is not.
//
//	c := cache.NewTTL[string, int](128, time.Minute)
//	c.Put("k", 42)
//	v, ok := c.Get("k") // ok is false once the entry expires or is evicted
package cache
