package nn

import (
	"math"

	"github.com/pkg/errors"
)

// DetectAnomaly makes Step fail on non-finite gradients. It is a process
// wide switch and on by default.
var DetectAnomaly = true

// ErrAnomaly is returned by Step when a gradient is NaN or Inf.
var ErrAnomaly = errors.New("non-finite gradient")

// Optimizer applies accumulated gradients.
type Optimizer interface {
	ZeroGrad()
	Step() error
}

// Adam implements the Adam optimizer over dense parameters.
type Adam struct {
	params []*Param
	m, v   [][]float64
	step   int

	LearningRate float64
	Beta1        float64
	Beta2        float64
	Eps          float64
}

// NewAdam creates an optimizer with the usual defaults.
func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{
		params:       params,
		m:            make([][]float64, len(params)),
		v:            make([][]float64, len(params)),
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Eps:          1e-8,
	}
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

// ZeroGrad clears the gradients of every parameter.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Steps returns the number of updates applied.
func (a *Adam) Steps() int {
	return a.step
}

// Step applies one update.
func (a *Adam) Step() error {
	if DetectAnomaly {
		for _, p := range a.params {
			for _, g := range p.Grad.RawMatrix().Data {
				if math.IsNaN(g) || math.IsInf(g, 0) {
					return errors.Wrapf(ErrAnomaly, "parameter %s", p.Name)
				}
			}
		}
	}

	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for i, p := range a.params {
		data := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j, g := range grad {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			data[j] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
	return nil
}
