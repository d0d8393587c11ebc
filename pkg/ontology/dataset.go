package ontology

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// column kinds for each normal form, in tuple order
const (
	classCol = iota
	relationCol
)

var columns = map[gci.Tag][]int{
	gci.GCI0: {classCol, classCol},
	gci.GCI1: {classCol, classCol, classCol},
	gci.GCI2: {classCol, relationCol, classCol},
	gci.GCI3: {relationCol, classCol, classCol},
}

// Dataset is a train/valid/test split of ontologies sharing one signature.
type Dataset struct {
	Classes     *Index
	Relations   *Index
	Individuals *Index

	Train gci.Axioms
	Valid gci.Axioms
	Test  gci.Axioms

	// Closure holds the inferred subsumptions of the training ontology
	// when a deductive closure was loaded.
	Closure gci.Axioms

	// EvaluationClasses are the class indices ranked during evaluation
	// and used as the negative sampling pool.
	EvaluationClasses []int64

	Skipped int
}

// NewDataset indexes the union of the signatures of the splits and encodes
// every axiom. valid and test may be nil.
func NewDataset(train, valid, test *Ontology) (*Dataset, error) {
	if train == nil {
		return nil, errors.New("training ontology is required")
	}
	splits := []*Ontology{train, valid, test}

	classes := make(map[string]bool)
	relations := make(map[string]bool)
	individuals := make(map[string]bool)
	for _, o := range splits {
		if o == nil {
			continue
		}
		for c := range o.Classes {
			classes[c] = true
		}
		for r := range o.Relations {
			relations[r] = true
		}
		for i := range o.Individuals {
			individuals[i] = true
		}
	}

	ds := &Dataset{
		Classes:     NewIndex(classes),
		Relations:   NewIndex(relations),
		Individuals: NewIndex(individuals),
	}

	var err error
	if ds.Train, err = ds.Encode(train); err != nil {
		return nil, errors.Wrap(err, "train")
	}
	if ds.Valid, err = ds.Encode(valid); err != nil {
		return nil, errors.Wrap(err, "valid")
	}
	if ds.Test, err = ds.Encode(test); err != nil {
		return nil, errors.Wrap(err, "test")
	}
	for _, o := range splits {
		if o != nil {
			ds.Skipped += o.Skipped
		}
	}
	return ds, nil
}

// Encode converts the axioms of o to index tuples. Every term must be in
// the dataset signature.
func (d *Dataset) Encode(o *Ontology) (gci.Axioms, error) {
	axioms := make(gci.Axioms)
	if o == nil {
		return axioms, nil
	}
	for _, ax := range o.Axioms {
		row, err := d.encodeRow(ax)
		if err != nil {
			return nil, err
		}
		axioms.Add(ax.Tag, row)
	}
	return axioms, nil
}

func (d *Dataset) encodeRow(ax Expression) (gci.Row, error) {
	cols, ok := columns[ax.Tag]
	if !ok || len(cols) != len(ax.Terms) {
		return nil, errors.Errorf("malformed %s axiom %v", ax.Tag, ax.Terms)
	}
	row := make(gci.Row, len(cols))
	for i, kind := range cols {
		ix := d.Classes
		if kind == relationCol {
			ix = d.Relations
		}
		id, ok := ix.ID(ax.Terms[i])
		if !ok {
			return nil, errors.Errorf("%s term %s not in signature", ax.Tag, ax.Terms[i])
		}
		row[i] = id
	}
	return row, nil
}

// SetClosure encodes the subsumptions of a deductive closure. Axioms that
// mention entities outside the signature are dropped.
func (d *Dataset) SetClosure(o *Ontology) int {
	d.Closure = make(gci.Axioms)
	dropped := 0
	for _, ax := range o.Axioms {
		if ax.Tag != gci.GCI0 {
			continue
		}
		row, err := d.encodeRow(ax)
		if err != nil {
			dropped++
			continue
		}
		d.Closure.Add(gci.GCI0, row)
	}
	return dropped
}

// SelectEvaluationClasses keeps the classes whose IRI starts with prefix.
// An empty prefix selects every class.
func (d *Dataset) SelectEvaluationClasses(prefix string) {
	d.EvaluationClasses = d.EvaluationClasses[:0]
	for i, name := range d.Classes.Keys {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			d.EvaluationClasses = append(d.EvaluationClasses, int64(i))
		}
	}
}
