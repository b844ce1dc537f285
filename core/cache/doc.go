// Package cache holds the router's versioned snapshots, keyed by store path.
//
// [LRU] bounds the number of snapshots; a single goroutine owns the entries,
// so [LRU.Close] must be called to stop it. [Nop] stores nothing and turns
// every versioned read into a store round trip. [NewTyped] wraps either one
// for a single value type.
//
//	c := cache.NewLRU(cache.LRUOpts{Size: 1024})
//	defer c.Close()
//	snapshots := cache.NewTyped[snapshot](c)
//	snapshots.Put("Plan/DBServers", snap)
package cache
