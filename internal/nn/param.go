// Package nn holds trainable parameters, the scoring-module capability the
// training loop depends on, and the optimizer.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Param is an embedding table with its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zeroed rows×cols parameter. An empty table keeps
// one unused row since gonum matrices cannot be zero-sized.
func NewParam(name string, rows, cols int) *Param {
	if rows < 1 {
		rows = 1
	}
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// Row returns the backing slice of row i.
func (p *Param) Row(i int64) []float64 {
	return p.Value.RawRowView(int(i))
}

// GradRow returns the backing gradient slice of row i.
func (p *Param) GradRow(i int64) []float64 {
	return p.Grad.RawRowView(int(i))
}

// Rows returns the number of embeddings.
func (p *Param) Rows() int {
	r, _ := p.Value.Dims()
	return r
}

// Init fills every entry with f().
func (p *Param) Init(f func() float64) {
	data := p.Value.RawMatrix().Data
	for i := range data {
		data[i] = f()
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}
