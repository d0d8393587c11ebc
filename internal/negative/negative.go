// Package negative corrupts positive axiom batches for contrastive training.
package negative

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// ErrEmptyPool is returned when a sampler is built without candidates.
var ErrEmptyPool = errors.New("negative: empty candidate pool")

// Sampler replaces the object of every row with a uniform draw from a
// fixed candidate pool.
type Sampler struct {
	pool []int64
	rng  *rand.Rand
}

// New returns a sampler over pool. The pool is copied.
func New(pool []int64, rng *rand.Rand) (*Sampler, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	return &Sampler{pool: append([]int64(nil), pool...), rng: rng}, nil
}

// PoolSize returns the number of candidates.
func (s *Sampler) PoolSize() int {
	return len(s.pool)
}

// Corrupt returns a batch shaped like batch whose last column is drawn
// with replacement from the pool. A draw may equal the original object.
func (s *Sampler) Corrupt(batch gci.Batch) gci.Batch {
	out := make(gci.Batch, len(batch))
	for i, row := range batch {
		neg := make(gci.Row, len(row))
		copy(neg, row)
		if len(neg) > 0 {
			neg[len(neg)-1] = s.pool[s.rng.Intn(len(s.pool))]
		}
		out[i] = neg
	}
	return out
}
