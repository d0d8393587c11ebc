// Package evaluate ranks held-out axioms against learned embeddings.
package evaluate

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/pkg/gci"
	"github.com/cnclabs/ontoem/pkg/ontology"
)

// Mode selects the split an evaluator ranks.
type Mode string

const (
	Valid Mode = "valid"
	Test  Mode = "test"
)

// HitsAt are the cut-offs reported as hits@k.
var HitsAt = []int{1, 3, 10, 50, 100}

// Metrics maps "<mode>_<metric>" to its value, e.g. "valid_mrr" or
// "test_f_hits@10".
type Metrics map[string]float64

// Evaluator scores a module on one split.
type Evaluator interface {
	Evaluate(m nn.Module, mode Mode) (Metrics, error)
}

// ErrUnknownEvaluator is returned by Resolve for names it does not know.
var ErrUnknownEvaluator = errors.New("unknown evaluator")

// DefaultRelation is the object property ranked by the ppi evaluator.
const DefaultRelation = "<http://interacts_with>"

// Options configures Resolve.
type Options struct {
	// Relation is the interaction property for ppi; DefaultRelation when empty.
	Relation string
	Workers  int
}

// Names lists the evaluators Resolve knows.
var Names = []string{"ppi", "subsumption"}

// Check returns ErrUnknownEvaluator when Resolve would not know name. It
// needs no dataset, so callers can fail before loading one.
func Check(name string) error {
	for _, n := range Names {
		if strings.EqualFold(n, name) {
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownEvaluator, "%q", name)
}

// Resolve returns the evaluator registered under name.
func Resolve(name string, ds *ontology.Dataset, opts Options) (Evaluator, error) {
	switch strings.ToLower(name) {
	case "ppi":
		e, err := NewPPI(ds, opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "subsumption":
		return NewSubsumption(ds, opts), nil
	}
	return nil, errors.Wrapf(ErrUnknownEvaluator, "%q", name)
}

// NewPPI ranks the tail of every held-out interaction among the
// evaluation classes. Filtered ranks ignore interactions known from any
// split.
func NewPPI(ds *ontology.Dataset, opts Options) (*RankEvaluator, error) {
	name := opts.Relation
	if name == "" {
		name = DefaultRelation
	}
	rel, ok := ds.Relations.ID(name)
	if !ok {
		return nil, errors.Errorf("relation %s not in dataset", name)
	}
	keep := func(row gci.Row) bool { return row[1] == rel }

	e := newRankEvaluator(gci.GCI2, ds.EvaluationClasses, opts.Workers)
	e.queries[Valid] = selectRows(ds.Valid[gci.GCI2], keep)
	e.queries[Test] = selectRows(ds.Test[gci.GCI2], keep)
	for _, split := range []gci.Axioms{ds.Train, ds.Valid, ds.Test} {
		e.addKnown(selectRows(split[gci.GCI2], keep))
	}
	return e, nil
}

// NewSubsumption ranks the superclass of every held-out C ⊑ D among the
// evaluation classes. Filtered ranks ignore known and inferred
// superclasses.
func NewSubsumption(ds *ontology.Dataset, opts Options) *RankEvaluator {
	e := newRankEvaluator(gci.GCI0, ds.EvaluationClasses, opts.Workers)
	e.queries[Valid] = ds.Valid[gci.GCI0]
	e.queries[Test] = ds.Test[gci.GCI0]
	for _, split := range []gci.Axioms{ds.Train, ds.Valid, ds.Test, ds.Closure} {
		e.addKnown(split[gci.GCI0])
	}
	return e
}

func selectRows(rows []gci.Row, keep func(gci.Row) bool) []gci.Row {
	var out []gci.Row
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}
