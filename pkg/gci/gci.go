// Package gci defines the EL normal forms used to bucket ontology axioms
// into training streams, and the integer tuples that represent them.
package gci

import "fmt"

// Tag identifies a normal-form category.
type Tag string

const (
	// GCI0 is C ⊑ D, stored as (C, D).
	GCI0 Tag = "gci0"
	// GCI1 is C ⊓ D ⊑ E, stored as (C, D, E).
	GCI1 Tag = "gci1"
	// GCI2 is C ⊑ ∃R.D, stored as (C, R, D).
	GCI2 Tag = "gci2"
	// GCI3 is ∃R.C ⊑ D, stored as (R, C, D).
	GCI3 Tag = "gci3"
)

// Tags lists every normal form in canonical order.
var Tags = []Tag{GCI0, GCI1, GCI2, GCI3}

// Primary is the normal form that paces a training epoch.
const Primary = GCI2

// Width returns the tuple width of the normal form.
func (t Tag) Width() int {
	switch t {
	case GCI0:
		return 2
	case GCI1, GCI2, GCI3:
		return 3
	}
	return 0
}

// Valid reports whether t is one of the known normal forms.
func (t Tag) Valid() bool {
	return t.Width() > 0
}

// Parse returns the tag named by s.
func Parse(s string) (Tag, error) {
	t := Tag(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown normal form %q", s)
	}
	return t, nil
}

// Row is one axiom as entity indices. Class and relation indices live in
// separate index spaces; the tag decides which column is which.
type Row []int64

// Object returns the last column, the argument replaced by negative sampling.
func (r Row) Object() int64 {
	return r[len(r)-1]
}

// Batch is an ordered group of rows of the same normal form.
type Batch []Row

// Len returns the number of rows.
func (b Batch) Len() int {
	return len(b)
}

// Axioms maps each normal form to its rows.
type Axioms map[Tag][]Row

// Total returns the number of rows across all normal forms.
func (a Axioms) Total() int {
	n := 0
	for _, rows := range a {
		n += len(rows)
	}
	return n
}

// Add appends a row under tag.
func (a Axioms) Add(tag Tag, row Row) {
	a[tag] = append(a[tag], row)
}
