// Package dataset maps named experiment datasets to their ontology files
// and loads them into an indexed ontology.Dataset.
package dataset

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cnclabs/ontoem/pkg/gci"
	"github.com/cnclabs/ontoem/pkg/ontology"
)

// ErrUnknownDataset is returned by Resolve for names it does not know.
var ErrUnknownDataset = errors.New("unknown dataset")

// DefaultProteinPrefix selects the yeast protein classes of the ppi datasets.
const DefaultProteinPrefix = "<http://4932."

// Spec locates one dataset on disk.
type Spec struct {
	Name string
	Dir  string
	// Subsumption datasets rank superclasses among all classes and may
	// ship a deductive closure of their training ontology.
	Subsumption bool
}

var known = map[string]bool{
	"ppi_yeast":      false,
	"ppi_yeast_slim": false,
	"go_subsumption": true,
}

// Resolve returns the spec of the dataset called name under dataRoot.
// Names are case-insensitive.
func Resolve(name, dataRoot string) (Spec, error) {
	key := strings.ToLower(name)
	subsumption, ok := known[key]
	if !ok {
		return Spec{}, errors.Wrapf(ErrUnknownDataset, "%q", name)
	}
	return Spec{
		Name:        key,
		Dir:         filepath.Join(dataRoot, key, "data"),
		Subsumption: subsumption,
	}, nil
}

// ModelDir is where checkpoints of models trained on the dataset live.
func (s Spec) ModelDir() string {
	return filepath.Join(s.Dir, "..", "models")
}

// File returns the path of split, preferring "<split>.nt" over
// "<split>.nt.gz".
func (s Spec) File(split string) string {
	plain := filepath.Join(s.Dir, split+".nt")
	if _, err := os.Stat(plain); err != nil {
		if gz := plain + ".gz"; fileExists(gz) {
			return gz
		}
	}
	return plain
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Options configures Load.
type Options struct {
	// ProteinPrefix selects the evaluation classes of ppi datasets;
	// DefaultProteinPrefix when empty.
	ProteinPrefix string
}

// Load reads the train, valid and test ontologies of s and indexes them.
// Subsumption datasets also load train_deductive_closure when present.
func Load(s Spec, opts Options, logger *zap.Logger) (*ontology.Dataset, error) {
	splits := make(map[string]*ontology.Ontology)
	for _, split := range []string{"train", "valid", "test"} {
		o, err := ontology.Load(s.File(split))
		if err != nil {
			return nil, errors.Wrapf(err, "dataset %s", s.Name)
		}
		splits[split] = o
		logger.Info("loaded ontology",
			zap.String("split", split),
			zap.String("statements", humanize.Comma(int64(o.Statements))),
			zap.String("axioms", humanize.Comma(int64(len(o.Axioms)))),
			zap.Int("skipped", o.Skipped))
	}

	ds, err := ontology.NewDataset(splits["train"], splits["valid"], splits["test"])
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", s.Name)
	}

	if s.Subsumption {
		ds.SelectEvaluationClasses("")
		if path := s.File("train_deductive_closure"); fileExists(path) {
			closure, err := ontology.Load(path)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset %s", s.Name)
			}
			dropped := ds.SetClosure(closure)
			logger.Info("loaded deductive closure",
				zap.String("subsumptions", humanize.Comma(int64(len(ds.Closure[gci.GCI0])))),
				zap.Int("dropped", dropped))
		}
	} else {
		prefix := opts.ProteinPrefix
		if prefix == "" {
			prefix = DefaultProteinPrefix
		}
		ds.SelectEvaluationClasses(prefix)
	}

	logger.Info("dataset",
		zap.String("name", s.Name),
		zap.String("classes", humanize.Comma(int64(ds.Classes.Len()))),
		zap.String("relations", humanize.Comma(int64(ds.Relations.Len()))),
		zap.String("individuals", humanize.Comma(int64(ds.Individuals.Len()))),
		zap.String("evaluation_classes", humanize.Comma(int64(len(ds.EvaluationClasses)))))
	return ds, nil
}
