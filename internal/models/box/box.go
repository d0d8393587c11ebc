package box

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/pkg/gci"
)

// Module embeds every class as an axis-aligned box (center, half-width)
// and every relation as a translation between boxes. Axiom scores are the
// norm of how far one box sticks out of another, so zero means satisfied.
type Module struct {
	centers   *nn.Param
	offsets   *nn.Param // half-width is |offset|
	relations *nn.Param

	numClasses   int
	numRelations int
	dim          int

	margin    float64
	regFactor float64
}

// New creates a module with parameters drawn uniformly from [-1, 1).
func New(numClasses, numRelations, dim int, margin, regFactor float64, rng *rand.Rand) *Module {
	m := &Module{
		centers:      nn.NewParam("class_centers", numClasses, dim),
		offsets:      nn.NewParam("class_offsets", numClasses, dim),
		relations:    nn.NewParam("relation_embeddings", numRelations, dim),
		numClasses:   numClasses,
		numRelations: numRelations,
		dim:          dim,
		margin:       margin,
		regFactor:    regFactor,
	}
	uniform := func() float64 { return rng.Float64()*2 - 1 }
	m.centers.Init(uniform)
	m.offsets.Init(uniform)
	m.relations.Init(uniform)
	return m
}

// PrintSetting prints the model setting banner.
func (m *Module) PrintSetting() {
	fmt.Println("Model Setting:")
	fmt.Printf("\tclasses:\t\t%d\n", m.numClasses)
	fmt.Printf("\trelations:\t\t%d\n", m.numRelations)
	fmt.Printf("\tdimension:\t\t%d\n", m.dim)
	fmt.Printf("\tmargin:\t\t\t%.4f\n", m.margin)
	fmt.Printf("\treg factor:\t\t%.4f\n", m.regFactor)
}

func (m *Module) Dim() int { return m.dim }

func (m *Module) Params() []*nn.Param {
	return []*nn.Param{m.centers, m.offsets, m.relations}
}

// Forward returns one score per row.
func (m *Module) Forward(batch gci.Batch, tag gci.Tag, neg bool) []float64 {
	out := make([]float64, len(batch))
	for i, row := range batch {
		out[i] = m.score(row, tag, neg, 0)
	}
	return out
}

// Backward accumulates grad[i] times the gradient of row i's score.
func (m *Module) Backward(batch gci.Batch, tag gci.Tag, neg bool, grad []float64) {
	for i, row := range batch {
		if grad[i] != 0 {
			m.score(row, tag, neg, grad[i])
		}
	}
}

// inclusion coefficients of
//
//	a = dist·|c_sub + rel·r - c_sup| + sub·|o_sub| + sup·|o_sup| + bias
type inclusion struct {
	rel, dist, sub, sup, bias float64
}

func (m *Module) score(row gci.Row, tag gci.Tag, neg bool, g float64) float64 {
	gamma := m.margin
	switch tag {
	case gci.GCI0:
		return m.include(row[0], -1, row[1], inclusion{0, 1, 1, -1, -gamma}, g)
	case gci.GCI1:
		return m.intersect(row[0], row[1], row[2], g)
	case gci.GCI2:
		if neg {
			return m.include(row[0], row[1], row[2], inclusion{1, -1, 1, 1, gamma}, g)
		}
		return m.include(row[0], row[1], row[2], inclusion{1, 1, 1, -1, -gamma}, g)
	case gci.GCI3:
		return m.include(row[1], row[0], row[2], inclusion{-1, 1, -1, -1, -gamma}, g)
	}
	panic(fmt.Sprintf("box: unknown normal form %q", tag))
}

// include scores the box of sub, translated by relation rel (when rel >= 0),
// against the box of sup, and accumulates g times its gradient.
func (m *Module) include(sub, rel, sup int64, k inclusion, g float64) float64 {
	cSub, cSup := m.centers.Row(sub), m.centers.Row(sup)
	oSub, oSup := m.offsets.Row(sub), m.offsets.Row(sup)
	var r []float64
	if rel >= 0 {
		r = m.relations.Row(rel)
	}

	d := make([]float64, m.dim)
	floats.SubTo(d, cSub, cSup)
	if r != nil {
		floats.AddScaled(d, k.rel, r)
	}

	a := make([]float64, m.dim)
	for i := range a {
		a[i] = k.dist*math.Abs(d[i]) + k.sub*math.Abs(oSub[i]) + k.sup*math.Abs(oSup[i]) + k.bias
	}
	loss := reluNorm(a)
	if g == 0 || loss == 0 {
		return loss
	}

	gcSub, gcSup := m.centers.GradRow(sub), m.centers.GradRow(sup)
	goSub, goSup := m.offsets.GradRow(sub), m.offsets.GradRow(sup)
	var gr []float64
	if r != nil {
		gr = m.relations.GradRow(rel)
	}
	for i, w := range a {
		if w == 0 {
			continue
		}
		w *= g
		gd := w * k.dist * sign(d[i])
		gcSub[i] += gd
		gcSup[i] -= gd
		if gr != nil {
			gr[i] += k.rel * gd
		}
		goSub[i] += w * k.sub * sign(oSub[i])
		goSup[i] += w * k.sup * sign(oSup[i])
	}
	return loss
}

// intersect scores C ⊓ D ⊑ E: the intersection box of C and D must lie in E.
func (m *Module) intersect(c, d, e int64, g float64) float64 {
	cC, cD, cE := m.centers.Row(c), m.centers.Row(d), m.centers.Row(e)
	oC, oD, oE := m.offsets.Row(c), m.offsets.Row(d), m.offsets.Row(e)

	a := make([]float64, m.dim)
	diff := make([]float64, m.dim)
	lowFromC := make([]bool, m.dim)
	highFromC := make([]bool, m.dim)
	for i := range a {
		loC, loD := cC[i]-math.Abs(oC[i]), cD[i]-math.Abs(oD[i])
		hiC, hiD := cC[i]+math.Abs(oC[i]), cD[i]+math.Abs(oD[i])
		lo, hi := loD, hiD
		if loC >= loD {
			lo, lowFromC[i] = loC, true
		}
		if hiC <= hiD {
			hi, highFromC[i] = hiC, true
		}
		center, half := (lo+hi)/2, (hi-lo)/2
		diff[i] = center - cE[i]
		a[i] = math.Abs(diff[i]) + half - math.Abs(oE[i]) - m.margin
	}
	loss := reluNorm(a)
	if g == 0 || loss == 0 {
		return loss
	}

	gcC, gcD, gcE := m.centers.GradRow(c), m.centers.GradRow(d), m.centers.GradRow(e)
	goC, goD, goE := m.offsets.GradRow(c), m.offsets.GradRow(d), m.offsets.GradRow(e)
	for i, w := range a {
		if w == 0 {
			continue
		}
		w *= g
		s := sign(diff[i])
		gLo := w * (s - 1) / 2
		gHi := w * (s + 1) / 2

		if lowFromC[i] {
			gcC[i] += gLo
			goC[i] -= gLo * sign(oC[i])
		} else {
			gcD[i] += gLo
			goD[i] -= gLo * sign(oD[i])
		}
		if highFromC[i] {
			gcC[i] += gHi
			goC[i] += gHi * sign(oC[i])
		} else {
			gcD[i] += gHi
			goD[i] += gHi * sign(oD[i])
		}
		gcE[i] -= w * s
		goE[i] -= w * sign(oE[i])
	}
	return loss
}

// RegularizationLoss is reg_factor times the mean relation norm.
func (m *Module) RegularizationLoss() float64 {
	if m.numRelations == 0 || m.regFactor == 0 {
		return 0
	}
	total := 0.0
	for r := 0; r < m.numRelations; r++ {
		total += floats.Norm(m.relations.Row(int64(r)), 2)
	}
	return m.regFactor * total / float64(m.numRelations)
}

// BackwardRegularization accumulates scale times the regularization gradient.
func (m *Module) BackwardRegularization(scale float64) {
	if m.numRelations == 0 || m.regFactor == 0 {
		return
	}
	coef := scale * m.regFactor / float64(m.numRelations)
	for r := 0; r < m.numRelations; r++ {
		row := m.relations.Row(int64(r))
		n := floats.Norm(row, 2)
		if n == 0 {
			continue
		}
		floats.AddScaled(m.relations.GradRow(int64(r)), coef/n, row)
	}
}

// ClassEmbeddings returns center and half-width side by side per class.
func (m *Module) ClassEmbeddings() *mat.Dense {
	out := mat.NewDense(m.numClasses, 2*m.dim, nil)
	for c := 0; c < m.numClasses; c++ {
		row := out.RawRowView(c)
		copy(row, m.centers.Row(int64(c)))
		for i, o := range m.offsets.Row(int64(c)) {
			row[m.dim+i] = math.Abs(o)
		}
	}
	return out
}

// reluNorm returns ‖relu(a)‖ and overwrites a with its gradient.
func reluNorm(a []float64) float64 {
	sq := 0.0
	for i, x := range a {
		if x > 0 {
			sq += x * x
		} else {
			a[i] = 0
		}
	}
	n := math.Sqrt(sq)
	if n == 0 {
		return 0
	}
	floats.Scale(1/n, a)
	return n
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
