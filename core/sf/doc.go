// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key.
//
// If multiple goroutines call [Singleflight.Do] with the same key
// concurrently, only the first call executes the function; the others block
// until it completes and receive the same result. The route package uses it so
// that a burst of readers hitting a stale path triggers a single store read.
//
//	group := sf.New[snapshot]()
//	snap, _, err := group.Do("Plan/DBServers@42", func() (snapshot, error) {
//	    return fetch(ctx)
//	})
package sf
