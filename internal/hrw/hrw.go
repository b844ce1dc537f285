// Package hrw implements rendezvous (highest random weight) hashing: every
// server scores every key, the highest score wins. Removing a server only
// moves the keys it won.
package hrw

import (
	"cmp"
	"encoding/binary"
	"slices"

	"golang.org/x/crypto/blake2b"
)

type scored struct {
	score uint64
	node  string
}

// Rank orders nodes by their score for key, best first. Ties, which need a
// hash collision, fall back to the node name. seed separates independent
// placements of the same keys.
func Rank(key string, nodes []string, seed string) []string {
	all := make([]scored, len(nodes))
	for i, n := range nodes {
		all[i] = scored{score: score(key, n, seed), node: n}
	}
	slices.SortFunc(all, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.node, b.node)
	})
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.node
	}
	return out
}

// Best returns the top ranked node. ok is false if nodes is empty.
func Best(key string, nodes []string, seed string) (best string, ok bool) {
	if len(nodes) == 0 {
		return "", false
	}
	return Rank(key, nodes, seed)[0], true
}

func score(key, node, seed string) uint64 {
	// 8-byte digest => uint64 score
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(node))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
