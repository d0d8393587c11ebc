package nn

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// Module scores axioms. Lower scores mean the embedding satisfies the
// axiom better. Forward has no side effects; Backward accumulates into the
// gradients of Params the derivative of Σ grad[i]·score[i].
type Module interface {
	Forward(batch gci.Batch, tag gci.Tag, neg bool) []float64
	Backward(batch gci.Batch, tag gci.Tag, neg bool, grad []float64)

	RegularizationLoss() float64
	BackwardRegularization(scale float64)

	Params() []*Param
	Dim() int
}

// EpochEnder is implemented by modules that project their parameters
// after every epoch.
type EpochEnder interface {
	EndEpoch()
}

// Embedder exposes one embedding row per class.
type Embedder interface {
	ClassEmbeddings() *mat.Dense
}

// MeanLoss computes the batch mean of the scores and backpropagates it.
func MeanLoss(m Module, batch gci.Batch, tag gci.Tag, neg bool) float64 {
	n := batch.Len()
	if n == 0 {
		return 0
	}
	scores := m.Forward(batch, tag, neg)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = 1 / float64(n)
	}
	m.Backward(batch, tag, neg, grad)
	return stat.Mean(scores, nil)
}
