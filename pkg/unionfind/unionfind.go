// Package unionfind implements a disjoint-set forest over string keys.
//
// Keys do not need to be registered up front: Find and Union add unseen keys
// as singleton sets. Parents are stored in a map so sparse or opaque
// identifiers (such as nanoid entity ids) work without an index mapping.
package unionfind

import "sort"

// UnionFind is a map-backed, path-compressing disjoint set with union by size.
// The zero value is not usable; create one with New.
type UnionFind struct {
	parent map[string]string
	size   map[string]int
}

// New returns an empty UnionFind.
func New() *UnionFind {
	return &UnionFind{
		parent: make(map[string]string),
		size:   make(map[string]int),
	}
}

// Add registers key as a singleton set if it is not known yet.
func (u *UnionFind) Add(key string) {
	if _, ok := u.parent[key]; ok {
		return
	}
	u.parent[key] = key
	u.size[key] = 1
}

// Find returns the representative of the set containing key.
func (u *UnionFind) Find(key string) string {
	u.Add(key)

	root := key
	for u.parent[root] != root {
		root = u.parent[root]
	}

	// path compression
	for key != root {
		next := u.parent[key]
		u.parent[key] = root
		key = next
	}

	return root
}

// Union merges the sets containing a and b and reports whether they were
// previously disjoint.
func (u *UnionFind) Union(a, b string) bool {
	ra := u.Find(a)
	rb := u.Find(b)
	if ra == rb {
		return false
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	delete(u.size, rb)
	return true
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind) Connected(a, b string) bool {
	return u.Find(a) == u.Find(b)
}

// Len returns the number of known keys.
func (u *UnionFind) Len() int {
	return len(u.parent)
}

// Components returns every set as a sorted slice of keys. Components are
// ordered by size descending, then by their first key, so the result is
// deterministic for a given set of unions.
func (u *UnionFind) Components() [][]string {
	groups := make(map[string][]string)
	for key := range u.parent {
		root := u.Find(key)
		groups[root] = append(groups[root], key)
	}

	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}

	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})

	return out
}
