// Package stream turns per-normal-form axiom tables into shuffled, batched
// training streams. The primary stream paces an epoch; every other stream
// is replayed cyclically so it never runs out before the primary one does.
package stream

import (
	"math/rand"
	"sort"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// Stream is an immutable table of axiom rows of one normal form.
type Stream struct {
	tag       gci.Tag
	rows      []gci.Row
	batchSize int
	rng       *rand.Rand
}

// Tag returns the normal form of the stream.
func (s *Stream) Tag() gci.Tag {
	return s.tag
}

// Len returns the number of rows.
func (s *Stream) Len() int {
	return len(s.rows)
}

// NumBatches returns the number of batches in one pass.
func (s *Stream) NumBatches() int {
	return (len(s.rows) + s.batchSize - 1) / s.batchSize
}

// Batches returns one pass over the stream in a fresh random order. The
// last batch may be short.
func (s *Stream) Batches() []gci.Batch {
	indices := s.rng.Perm(len(s.rows))
	batches := make([]gci.Batch, 0, s.NumBatches())
	for start := 0; start < len(indices); start += s.batchSize {
		end := start + s.batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batch := make(gci.Batch, end-start)
		for i, idx := range indices[start:end] {
			batch[i] = s.rows[idx]
		}
		batches = append(batches, batch)
	}
	return batches
}

// Cycle replays the first shuffled pass over a stream forever.
type Cycle struct {
	stream *Stream
	saved  []gci.Batch
	pos    int
}

// NewCycle wraps s. The first pass is drawn lazily.
func NewCycle(s *Stream) *Cycle {
	return &Cycle{stream: s}
}

// Tag returns the normal form of the wrapped stream.
func (c *Cycle) Tag() gci.Tag {
	return c.stream.tag
}

// Next returns the next batch, wrapping around after the last one.
func (c *Cycle) Next() gci.Batch {
	if c.saved == nil {
		c.saved = c.stream.Batches()
	}
	b := c.saved[c.pos]
	c.pos = (c.pos + 1) % len(c.saved)
	return b
}

// Set is the collection of non-empty streams of one training run.
type Set struct {
	Primary   *Stream
	Secondary []*Cycle
	Sizes     map[gci.Tag]int
}

// Build creates a stream for every non-empty normal form in axioms. The
// gci.Primary stream, when present, is kept as Primary; the others are
// wrapped in cycles ordered by tag.
func Build(axioms gci.Axioms, batchSize int, rng *rand.Rand) *Set {
	if batchSize < 1 {
		batchSize = 1
	}
	set := &Set{Sizes: make(map[gci.Tag]int)}

	tags := make([]gci.Tag, 0, len(axioms))
	for tag, rows := range axioms {
		if len(rows) > 0 {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	for _, tag := range tags {
		s := &Stream{tag: tag, rows: axioms[tag], batchSize: batchSize, rng: rng}
		set.Sizes[tag] = s.Len()
		if tag == gci.Primary {
			set.Primary = s
			continue
		}
		set.Secondary = append(set.Secondary, NewCycle(s))
	}
	return set
}

// Total returns the number of rows across all streams.
func (s *Set) Total() int {
	n := 0
	for _, size := range s.Sizes {
		n += size
	}
	return n
}

// Weights returns each stream's share of the total row count. It panics on
// an empty set since Build never produces empty streams.
func (s *Set) Weights() map[gci.Tag]float64 {
	total := s.Total()
	if total == 0 {
		panic("stream: weights of an empty stream set")
	}
	weights := make(map[gci.Tag]float64, len(s.Sizes))
	for tag, size := range s.Sizes {
		weights[tag] = float64(size) / float64(total)
	}
	return weights
}
