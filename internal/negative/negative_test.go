package negative

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ontoem/pkg/gci"
)

func TestEmptyPool(t *testing.T) {
	_, err := New(nil, rand.New(rand.NewSource(1)))
	assert.Equal(t, ErrEmptyPool, errors.Cause(err))
}

func TestCorruptKeepsSubjectAndRelation(t *testing.T) {
	pool := []int64{100, 101, 102, 103}
	members := make(map[int64]bool)
	for _, p := range pool {
		members[p] = true
	}

	s, err := New(pool, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, 4, s.PoolSize())

	batch := make(gci.Batch, 200)
	for i := range batch {
		batch[i] = gci.Row{int64(i), 0, int64(i + 1)}
	}
	neg := s.Corrupt(batch)
	require.Len(t, neg, len(batch))

	drawn := make(map[int64]bool)
	for i, row := range neg {
		require.Len(t, row, 3)
		assert.Equal(t, batch[i][:2], row[:2])
		assert.True(t, members[row[2]], "object %d outside the pool", row[2])
		drawn[row[2]] = true
	}
	assert.Len(t, drawn, len(pool), "200 draws cover a pool of 4")

	// the input batch is left untouched
	assert.Equal(t, int64(1), batch[0][2])
}

func TestCorruptPoolIsCopied(t *testing.T) {
	pool := []int64{5}
	s, err := New(pool, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	pool[0] = 6

	neg := s.Corrupt(gci.Batch{{1, 2, 3}})
	assert.Equal(t, gci.Row{1, 2, 5}, neg[0])
}

func TestCorruptFreshDrawsPerCall(t *testing.T) {
	pool := make([]int64, 1000)
	for i := range pool {
		pool[i] = int64(i)
	}
	s, err := New(pool, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	batch := make(gci.Batch, 50)
	for i := range batch {
		batch[i] = gci.Row{0, 0, 0}
	}
	assert.NotEqual(t, s.Corrupt(batch), s.Corrupt(batch))
}
