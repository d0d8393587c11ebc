package transe

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/pkg/gci"
	"github.com/cnclabs/ontoem/pkg/ontology"
)

// TransE implements the TransE (Translating Embeddings) algorithm over the
// graph projection of an ontology. Relations are translations in the
// embedding space: h + r ≈ t. C ⊑ D is the edge (C, subClassOf, D) and
// C ⊑ ∃R.D is the edge (C, R, D); the remaining normal forms have no edge
// and score zero.
type TransE struct {
	entityEmbeddings   *nn.Param // one row per class
	relationEmbeddings *nn.Param // one row per object property, plus subClassOf

	numEntities  int
	numRelations int
	dim          int

	// TransE parameters
	margin float64 // Margin for negative triples
	norm   int     // L1 or L2 norm (1 or 2)
}

// New creates a TransE instance over numEntities classes and numRelations
// object properties. The subClassOf relation gets the extra last row.
func New(numEntities, numRelations, dim int, margin float64, norm int, rng *rand.Rand) (*TransE, error) {
	if norm != 1 && norm != 2 {
		return nil, errors.Errorf("norm must be 1 (L1) or 2 (L2), got %d", norm)
	}
	te := &TransE{
		entityEmbeddings:   nn.NewParam("entity_embeddings", numEntities, dim),
		relationEmbeddings: nn.NewParam("relation_embeddings", numRelations+1, dim),
		numEntities:        numEntities,
		numRelations:       numRelations + 1,
		dim:                dim,
		margin:             margin,
		norm:               norm,
	}

	// Initialize embeddings with random values
	uniform := func() float64 { return (rng.Float64() - 0.5) / float64(dim) }
	te.entityEmbeddings.Init(uniform)
	te.relationEmbeddings.Init(uniform)

	// L2 normalize entity embeddings; relations are NOT normalized
	te.EndEpoch()
	return te, nil
}

// PrintSetting prints the model setting banner.
func (te *TransE) PrintSetting() {
	fmt.Println("Model Setting:")
	fmt.Printf("\tdimension:\t\t%d\n", te.dim)
	fmt.Printf("\tmargin:\t\t\t%.2f\n", te.margin)
	if te.norm == 1 {
		fmt.Printf("\tnorm:\t\t\tL1 (Manhattan)\n")
	} else {
		fmt.Printf("\tnorm:\t\t\tL2 (Euclidean)\n")
	}
	fmt.Println()
	fmt.Println("TransE Principle:")
	fmt.Println("\th + r ≈ t")
	fmt.Println("\t(head + relation ≈ tail in embedding space)")
}

func (te *TransE) Dim() int { return te.dim }

func (te *TransE) Params() []*nn.Param {
	return []*nn.Param{te.entityEmbeddings, te.relationEmbeddings}
}

// SubClassOf returns the relation index used for taxonomy edges.
func (te *TransE) SubClassOf() int64 {
	return int64(te.numRelations - 1)
}

// edge maps a row to (head, relation, tail).
func (te *TransE) edge(row gci.Row, tag gci.Tag) (h, r, t int64, ok bool) {
	switch tag {
	case gci.GCI0:
		return row[0], te.SubClassOf(), row[1], true
	case gci.GCI2:
		return row[0], row[1], row[2], true
	}
	return 0, 0, 0, false
}

// Forward returns ||h + r - t|| per row, or max(0, margin - ||h + r - t||)
// for negative rows.
func (te *TransE) Forward(batch gci.Batch, tag gci.Tag, neg bool) []float64 {
	out := make([]float64, len(batch))
	diff := make([]float64, te.dim)
	for i, row := range batch {
		h, r, t, ok := te.edge(row, tag)
		if !ok {
			continue
		}
		out[i] = te.loss(te.score(h, r, t, diff), neg)
	}
	return out
}

func (te *TransE) loss(distance float64, neg bool) float64 {
	if neg {
		return math.Max(0, te.margin-distance)
	}
	return distance
}

// score computes the TransE score for a triple: ||h + r - t||, leaving
// h + r - t in diff. Lower score = better fit.
func (te *TransE) score(head, relation, tail int64, diff []float64) float64 {
	floats.AddTo(diff, te.entityEmbeddings.Row(head), te.relationEmbeddings.Row(relation))
	floats.Sub(diff, te.entityEmbeddings.Row(tail))
	if te.norm == 1 {
		// L1 norm (Manhattan distance)
		return floats.Norm(diff, 1)
	}
	// L2 norm (Euclidean distance)
	return floats.Norm(diff, 2)
}

// Backward accumulates grad[i] times the gradient of row i's score.
func (te *TransE) Backward(batch gci.Batch, tag gci.Tag, neg bool, grad []float64) {
	diff := make([]float64, te.dim)
	for i, row := range batch {
		h, r, t, ok := te.edge(row, tag)
		if !ok || grad[i] == 0 {
			continue
		}
		distance := te.score(h, r, t, diff)
		g := grad[i]
		if neg {
			if distance >= te.margin {
				continue
			}
			g = -g
		}

		// Normalize gradients based on norm type
		if te.norm == 1 {
			// L1: sign of gradient
			for d := range diff {
				switch {
				case diff[d] > 0:
					diff[d] = 1
				case diff[d] < 0:
					diff[d] = -1
				}
			}
		} else {
			if distance == 0 {
				continue
			}
			floats.Scale(1/distance, diff)
		}

		// Gradient: +diff for head and relation, -diff for tail
		floats.AddScaled(te.entityEmbeddings.GradRow(h), g, diff)
		floats.AddScaled(te.relationEmbeddings.GradRow(r), g, diff)
		floats.AddScaled(te.entityEmbeddings.GradRow(t), -g, diff)
	}
}

func (te *TransE) RegularizationLoss() float64 { return 0 }

func (te *TransE) BackwardRegularization(float64) {}

// EndEpoch normalizes entity embeddings to unit length.
func (te *TransE) EndEpoch() {
	for i := 0; i < te.numEntities; i++ {
		row := te.entityEmbeddings.Row(int64(i))
		if norm := floats.Norm(row, 2); norm > 1e-10 {
			floats.Scale(1/norm, row)
		}
	}
}

// ClassEmbeddings returns the entity embeddings.
func (te *TransE) ClassEmbeddings() *mat.Dense {
	return mat.DenseCopyOf(te.entityEmbeddings.Value)
}

// Predict scores a named triple. Lower score = more likely to be true.
func (te *TransE) Predict(ds *ontology.Dataset, head, relation, tail string) (float64, error) {
	headID, exists := ds.Classes.ID(head)
	if !exists {
		return 0, errors.Errorf("entity not found: %s", head)
	}

	relID := te.SubClassOf()
	if relation != ontology.SubClassOf {
		relID, exists = ds.Relations.ID(relation)
		if !exists {
			return 0, errors.Errorf("relation not found: %s", relation)
		}
	}

	tailID, exists := ds.Classes.ID(tail)
	if !exists {
		return 0, errors.Errorf("entity not found: %s", tail)
	}

	return te.score(headID, relID, tailID, make([]float64, te.dim)), nil
}
