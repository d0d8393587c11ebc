package ontology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/ontoem/pkg/gci"
)

// Triple is a projected graph edge (head, relation, tail).
type Triple struct {
	Head     string
	Relation string
	Tail     string
	Weight   float64
}

// Project maps the ontology to graph edges: C ⊑ D becomes
// (C, subClassOf, D) and C ⊑ ∃R.D becomes (C, R, D). With bidirectional
// set, taxonomy edges are mirrored with a superClassOf relation.
// Conjunctions and existential subclasses have no edge.
func Project(o *Ontology, bidirectional bool) []Triple {
	triples := make([]Triple, 0, len(o.Axioms))
	for _, ax := range o.Axioms {
		switch ax.Tag {
		case gci.GCI0:
			triples = append(triples, Triple{Head: ax.Terms[0], Relation: SubClassOf, Tail: ax.Terms[1], Weight: 1})
			if bidirectional {
				triples = append(triples, Triple{Head: ax.Terms[1], Relation: SuperClassOf, Tail: ax.Terms[0], Weight: 1})
			}
		case gci.GCI2:
			triples = append(triples, Triple{Head: ax.Terms[0], Relation: ax.Terms[1], Tail: ax.Terms[2], Weight: 1})
		}
	}
	return triples
}

// WriteTriples writes one "head relation tail weight" line per triple.
func WriteTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := fmt.Fprintf(bw, "%s %s %s %s\n", t.Head, t.Relation, t.Tail,
			strconv.FormatFloat(t.Weight, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTriples reads the format written by WriteTriples. Lines with fewer
// than three fields are ignored and a missing weight defaults to 1.
func ReadTriples(filename string) ([]Triple, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()

	var triples []Triple
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			continue
		}

		weight := 1.0
		if len(parts) >= 4 {
			if w, err := strconv.ParseFloat(parts[3], 64); err == nil {
				weight = w
			}
		}
		triples = append(triples, Triple{Head: parts[0], Relation: parts[1], Tail: parts[2], Weight: weight})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}
	return triples, nil
}
