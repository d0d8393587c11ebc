package ontology

import (
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// Expression is a normalised axiom over IRIs, before indexing.
// Terms follow the column order of Tag.
type Expression struct {
	Tag   gci.Tag
	Terms []string
}

// Ontology holds the normalised content of one ontology file.
type Ontology struct {
	Classes     map[string]bool
	Relations   map[string]bool
	Individuals map[string]bool
	Axioms      []Expression

	// Statements is the number of decoded statements and Skipped the
	// number of class axioms outside the EL normal forms.
	Statements int
	Skipped    int
}

func newOntology() *Ontology {
	return &Ontology{
		Classes:     make(map[string]bool),
		Relations:   make(map[string]bool),
		Individuals: make(map[string]bool),
	}
}

// Count returns the number of axioms per normal form.
func (o *Ontology) Count() map[gci.Tag]int {
	counts := make(map[gci.Tag]int, len(gci.Tags))
	for _, ax := range o.Axioms {
		counts[ax.Tag]++
	}
	return counts
}

// Load reads an N-Triples ontology. Files ending in .gz are decompressed.
func Load(path string) (*Ontology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ontology %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read gzip ontology %s", path)
		}
		defer gz.Close()
		r = gz
	}

	o, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return o, nil
}

// Decode reads N-Triples statements from r and recognises the EL normal
// forms among its class axioms:
//
//	C ⊑ D        <C> rdfs:subClassOf <D>
//	C ⊓ D ⊑ E    _:x owl:intersectionOf (<C> <D>) . _:x rdfs:subClassOf <E>
//	C ⊑ ∃R.D     <C> rdfs:subClassOf _:r . _:r owl:onProperty <R> ; owl:someValuesFrom <D>
//	∃R.C ⊑ D     _:r owl:onProperty <R> ; owl:someValuesFrom <C> . _:r rdfs:subClassOf <D>
//
// owl:equivalentClass contributes both inclusions. Anything else is counted
// in Skipped.
func Decode(r io.Reader) (*Ontology, error) {
	b := newBuilder()
	dec := rdf.NewDecoder(r)
	for {
		s, err := dec.Unmarshal()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		b.add(s)
	}
	return b.build(), nil
}

// restriction collects the triples describing one blank node.
type restriction struct {
	onProperty     string
	someValuesFrom string
	intersectionOf string
}

type builder struct {
	ont        *Ontology
	subClassOf [][2]string
	equivalent [][2]string
	blank      map[string]*restriction
	first      map[string]string
	rest       map[string]string
}

func newBuilder() *builder {
	return &builder{
		ont:   newOntology(),
		blank: make(map[string]*restriction),
		first: make(map[string]string),
		rest:  make(map[string]string),
	}
}

func (b *builder) node(v string) *restriction {
	r, ok := b.blank[v]
	if !ok {
		r = &restriction{}
		b.blank[v] = r
	}
	return r
}

func (b *builder) add(s *rdf.Statement) {
	b.ont.Statements++
	subj, pred, obj := s.Subject.Value, s.Predicate.Value, s.Object.Value

	switch pred {
	case rdfType:
		if !isNamed(subj) {
			return
		}
		switch obj {
		case owlClass:
			b.ont.Classes[subj] = true
		case owlObjectProperty:
			b.ont.Relations[subj] = true
		case owlNamedIndividual:
			b.ont.Individuals[subj] = true
		}
	case SubClassOf:
		b.subClassOf = append(b.subClassOf, [2]string{subj, obj})
	case owlEquivalentClass:
		b.equivalent = append(b.equivalent, [2]string{subj, obj})
	case owlOnProperty:
		if isBlank(subj) {
			b.node(subj).onProperty = obj
		}
	case owlSomeValuesFrom:
		if isBlank(subj) {
			b.node(subj).someValuesFrom = obj
		}
	case owlIntersectionOf:
		if isBlank(subj) {
			b.node(subj).intersectionOf = obj
		}
	case rdfFirst:
		b.first[subj] = obj
	case rdfRest:
		b.rest[subj] = obj
	}
}

// members walks an rdf list from head.
func (b *builder) members(head string) []string {
	var out []string
	seen := make(map[string]bool)
	for cur := head; cur != rdfNil; cur = b.rest[cur] {
		if cur == "" || seen[cur] {
			return nil
		}
		seen[cur] = true
		v, ok := b.first[cur]
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// existential returns R and C when v is a blank node for ∃R.C with named parts.
func (b *builder) existential(v string) (rel, filler string, ok bool) {
	if !isBlank(v) {
		return "", "", false
	}
	r, found := b.blank[v]
	if !found || !isNamed(r.onProperty) || !isNamed(r.someValuesFrom) {
		return "", "", false
	}
	return r.onProperty, r.someValuesFrom, true
}

// conjunction returns C and D when v is a blank node for C ⊓ D with named parts.
func (b *builder) conjunction(v string) (left, right string, ok bool) {
	if !isBlank(v) {
		return "", "", false
	}
	r, found := b.blank[v]
	if !found || r.intersectionOf == "" {
		return "", "", false
	}
	parts := b.members(r.intersectionOf)
	if len(parts) != 2 || !isNamed(parts[0]) || !isNamed(parts[1]) {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (b *builder) include(sub, sup string) {
	o := b.ont
	if isNamed(sub) && isNamed(sup) {
		o.Axioms = append(o.Axioms, Expression{Tag: gci.GCI0, Terms: []string{sub, sup}})
		o.Classes[sub], o.Classes[sup] = true, true
		return
	}
	if isNamed(sub) {
		if rel, filler, ok := b.existential(sup); ok {
			o.Axioms = append(o.Axioms, Expression{Tag: gci.GCI2, Terms: []string{sub, rel, filler}})
			o.Classes[sub], o.Classes[filler] = true, true
			o.Relations[rel] = true
			return
		}
	}
	if isNamed(sup) {
		if left, right, ok := b.conjunction(sub); ok {
			o.Axioms = append(o.Axioms, Expression{Tag: gci.GCI1, Terms: []string{left, right, sup}})
			o.Classes[left], o.Classes[right], o.Classes[sup] = true, true, true
			return
		}
		if rel, filler, ok := b.existential(sub); ok {
			o.Axioms = append(o.Axioms, Expression{Tag: gci.GCI3, Terms: []string{rel, filler, sup}})
			o.Classes[filler], o.Classes[sup] = true, true
			o.Relations[rel] = true
			return
		}
	}
	o.Skipped++
}

func (b *builder) build() *Ontology {
	for _, p := range b.subClassOf {
		b.include(p[0], p[1])
	}
	for _, p := range b.equivalent {
		b.include(p[0], p[1])
		b.include(p[1], p[0])
	}
	return b.ont
}
