package topology

import (
	"slices"

	"github.com/codewandler/clstr-agency/internal/hrw"
)

const placementSeed = "agency/shards"

// SuggestServer picks a server for shard among candidates by rendezvous
// hashing, ignoring the excluded names. The choice is stable for the same
// candidate set and moves as few shards as possible when it changes.
func SuggestServer(shard string, candidates []string, exclude ...string) (string, bool) {
	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !slices.Contains(exclude, c) {
			pool = append(pool, c)
		}
	}
	return hrw.Best(shard, pool, placementSeed)
}
