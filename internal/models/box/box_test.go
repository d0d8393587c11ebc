package box

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/pkg/gci"
)

func newTestModule() *Module {
	return New(5, 2, 4, 0.1, 0.05, rand.New(rand.NewSource(7)))
}

// numericGrad estimates d(Σ scores)/d(param[row][col]) by central differences.
func numericGrad(m *Module, p *nn.Param, row int64, col int, batch gci.Batch, tag gci.Tag, neg bool) float64 {
	const eps = 1e-6
	sum := func() float64 {
		total := 0.0
		for _, s := range m.Forward(batch, tag, neg) {
			total += s
		}
		return total
	}
	v := p.Row(row)
	orig := v[col]
	v[col] = orig + eps
	up := sum()
	v[col] = orig - eps
	down := sum()
	v[col] = orig
	return (up - down) / (2 * eps)
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	cases := []struct {
		name  string
		tag   gci.Tag
		neg   bool
		batch gci.Batch
	}{
		{"gci0", gci.GCI0, false, gci.Batch{{0, 1}, {2, 3}}},
		{"gci1", gci.GCI1, false, gci.Batch{{0, 1, 2}, {3, 4, 0}}},
		{"gci2", gci.GCI2, false, gci.Batch{{0, 1, 2}, {3, 0, 4}}},
		{"gci2 negative", gci.GCI2, true, gci.Batch{{0, 1, 2}, {1, 0, 1}}},
		{"gci3", gci.GCI3, false, gci.Batch{{0, 1, 2}, {1, 4, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModule()
			for _, p := range m.Params() {
				p.ZeroGrad()
			}
			ones := make([]float64, len(tc.batch))
			for i := range ones {
				ones[i] = 1
			}
			m.Backward(tc.batch, tc.tag, tc.neg, ones)

			for _, p := range m.Params() {
				for row := int64(0); row < int64(p.Rows()); row++ {
					for col := 0; col < m.Dim(); col++ {
						want := numericGrad(m, p, row, col, tc.batch, tc.tag, tc.neg)
						got := p.GradRow(row)[col]
						assert.InDelta(t, want, got, 1e-4, "%s[%d][%d]", p.Name, row, col)
					}
				}
			}
		})
	}
}

func TestContainedBoxScoresZero(t *testing.T) {
	m := newTestModule()
	copy(m.centers.Row(0), []float64{0, 0, 0, 0})
	copy(m.offsets.Row(0), []float64{0.1, -0.1, 0.1, 0.1})
	copy(m.centers.Row(1), []float64{0.2, 0, 0, -0.2})
	copy(m.offsets.Row(1), []float64{1, 1, -1, 1})

	assert.Zero(t, m.Forward(gci.Batch{{0, 1}}, gci.GCI0, false)[0])
	assert.Greater(t, m.Forward(gci.Batch{{1, 0}}, gci.GCI0, false)[0], 0.0)
}

func TestNegativeModeRewardsSeparation(t *testing.T) {
	m := newTestModule()
	for i := range m.relations.Row(0) {
		m.relations.Row(0)[i] = 0
	}
	copy(m.centers.Row(0), []float64{0, 0, 0, 0})
	copy(m.offsets.Row(0), []float64{0.1, 0.1, 0.1, 0.1})
	copy(m.centers.Row(1), []float64{5, 5, 5, 5})
	copy(m.offsets.Row(1), []float64{0.1, 0.1, 0.1, 0.1})

	far := gci.Batch{{0, 0, 1}}
	assert.Zero(t, m.Forward(far, gci.GCI2, true)[0], "disjoint boxes satisfy the negative")
	assert.Greater(t, m.Forward(far, gci.GCI2, false)[0], 0.0)

	near := gci.Batch{{0, 0, 0}}
	assert.Greater(t, m.Forward(near, gci.GCI2, true)[0], 0.0)
}

func TestRegularizationGradient(t *testing.T) {
	m := newTestModule()
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
	m.BackwardRegularization(1)

	const eps = 1e-6
	for row := int64(0); row < 2; row++ {
		for col := 0; col < m.Dim(); col++ {
			v := m.relations.Row(row)
			orig := v[col]
			v[col] = orig + eps
			up := m.RegularizationLoss()
			v[col] = orig - eps
			down := m.RegularizationLoss()
			v[col] = orig
			assert.InDelta(t, (up-down)/(2*eps), m.relations.GradRow(row)[col], 1e-6)
		}
	}
}

func TestClassEmbeddingsShape(t *testing.T) {
	m := newTestModule()
	emb := m.ClassEmbeddings()
	r, c := emb.Dims()
	require.Equal(t, 5, r)
	require.Equal(t, 8, c)
	for i := 0; i < r; i++ {
		for _, w := range emb.RawRowView(i)[m.Dim():] {
			assert.GreaterOrEqual(t, w, 0.0)
		}
	}
}

func TestUnknownTagPanics(t *testing.T) {
	m := newTestModule()
	assert.Panics(t, func() { m.Forward(gci.Batch{{0, 1}}, gci.Tag("gci9"), false) })
}
