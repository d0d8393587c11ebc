package stream

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ontoem/pkg/gci"
)

func rows(n, width int) []gci.Row {
	out := make([]gci.Row, n)
	for i := range out {
		row := make(gci.Row, width)
		for j := range row {
			row[j] = int64(i)
		}
		out[i] = row
	}
	return out
}

func TestBuildScenario(t *testing.T) {
	axioms := gci.Axioms{
		gci.GCI0: rows(10, 2),
		gci.GCI1: nil,
		gci.GCI2: rows(100, 3),
		gci.GCI3: rows(5, 3),
	}
	set := Build(axioms, 10, rand.New(rand.NewSource(1)))

	assert.Len(t, set.Sizes, 3)
	_, ok := set.Sizes[gci.GCI1]
	assert.False(t, ok, "empty streams are dropped")
	assert.Equal(t, axioms.Total(), set.Total())

	require.NotNil(t, set.Primary)
	assert.Equal(t, gci.GCI2, set.Primary.Tag())
	assert.Len(t, set.Primary.Batches(), 10)

	require.Len(t, set.Secondary, 2)
	assert.Equal(t, gci.GCI0, set.Secondary[0].Tag())
	assert.Equal(t, gci.GCI3, set.Secondary[1].Tag())

	// Each cycle has a single batch, so it wraps after every draw.
	for _, c := range set.Secondary {
		first := c.Next()
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.Next())
		}
	}
}

func TestSizesSumToInputTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		axioms := gci.Axioms{}
		for _, tag := range gci.Tags {
			axioms[tag] = rows(rng.Intn(4)*rng.Intn(20), tag.Width())
		}
		set := Build(axioms, 1+rng.Intn(8), rng)
		assert.Equal(t, axioms.Total(), set.Total())
		for tag, size := range set.Sizes {
			assert.Positive(t, size, "%s", tag)
		}
	}
}

func TestBatchesCoverStreamOnce(t *testing.T) {
	set := Build(gci.Axioms{gci.GCI2: rows(23, 3)}, 5, rand.New(rand.NewSource(9)))
	batches := set.Primary.Batches()
	require.Len(t, batches, 5)
	assert.Equal(t, 3, batches[4].Len())

	seen := make(map[int64]bool)
	for _, b := range batches {
		for _, r := range b {
			assert.False(t, seen[r[0]])
			seen[r[0]] = true
		}
	}
	assert.Len(t, seen, 23)
}

func TestCycleReplaysFirstPass(t *testing.T) {
	c := NewCycle(&Stream{tag: gci.GCI0, rows: rows(7, 2), batchSize: 3, rng: rand.New(rand.NewSource(2))})
	var first []gci.Batch
	for i := 0; i < 3; i++ {
		first = append(first, c.Next())
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, first[i], c.Next())
	}
}

func TestPrimaryAbsent(t *testing.T) {
	set := Build(gci.Axioms{gci.GCI0: rows(3, 2)}, 2, rand.New(rand.NewSource(1)))
	assert.Nil(t, set.Primary)
	assert.Len(t, set.Secondary, 1)
}

func TestWeights(t *testing.T) {
	set := Build(gci.Axioms{gci.GCI0: rows(25, 2), gci.GCI2: rows(75, 3)}, 10, rand.New(rand.NewSource(1)))
	w := set.Weights()
	assert.InDelta(t, 0.25, w[gci.GCI0], 1e-12)
	assert.InDelta(t, 0.75, w[gci.GCI2], 1e-12)

	empty := Build(gci.Axioms{}, 10, rand.New(rand.NewSource(1)))
	assert.Panics(t, func() { empty.Weights() })
}
