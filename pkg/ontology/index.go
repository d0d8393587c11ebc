package ontology

import "sort"

// Index is a dense, sorted lookup table between names and indices.
type Index struct {
	Keys []string
	Hash map[string]int64
}

// NewIndex builds an index over names in lexical order.
func NewIndex(names map[string]bool) *Index {
	keys := make([]string, 0, len(names))
	for name := range names {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	ix := &Index{
		Keys: keys,
		Hash: make(map[string]int64, len(keys)),
	}
	for i, k := range keys {
		ix.Hash[k] = int64(i)
	}
	return ix
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.Keys)
}

// ID returns the index of name.
func (ix *Index) ID(name string) (int64, bool) {
	id, ok := ix.Hash[name]
	return id, ok
}

// Name returns the name at id, or "" when id is out of range.
func (ix *Index) Name(id int64) string {
	if id < 0 || id >= int64(len(ix.Keys)) {
		return ""
	}
	return ix.Keys[id]
}
