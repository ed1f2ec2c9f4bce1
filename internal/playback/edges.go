package playback

import "github.com/rendis/playback/pkg/schema"

type edgeKey struct {
	source, target string
}

// EdgeIndex resolves the edge traversed between two consecutive steps.
type EdgeIndex struct {
	byPair map[edgeKey]string
}

// NewEdgeIndex indexes edges by (source, target). When several edges share a
// pair, the first one in input order wins.
func NewEdgeIndex(edges []schema.Edge) *EdgeIndex {
	idx := &EdgeIndex{byPair: make(map[edgeKey]string, len(edges))}
	for _, e := range edges {
		key := edgeKey{e.Source, e.Target}
		if _, dup := idx.byPair[key]; dup {
			continue
		}
		idx.byPair[key] = e.ID
	}
	return idx
}

// Lookup returns the ID of the edge from source to target.
func (idx *EdgeIndex) Lookup(source, target string) (string, bool) {
	if idx == nil {
		return "", false
	}
	id, ok := idx.byPair[edgeKey{source, target}]
	return id, ok
}

// Len returns the number of distinct (source, target) pairs.
func (idx *EdgeIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byPair)
}
