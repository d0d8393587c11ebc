// Package checkpoint persists module parameters between training and test.
//
// A checkpoint is a gob-encoded map from parameter name to the gonum binary
// encoding of its value, compressed with snappy. Saving writes a temporary
// file next to the target and renames it into place, so readers see either
// the previous snapshot or the new one.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/ontoem/internal/nn"
)

// ErrNoCheckpoint is returned when loading a checkpoint that was never written.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint")

// Path returns the checkpoint file of one hyperparameter configuration.
func Path(modelDir string, dim, batchSize int, moduleMargin, lossMargin, lr float64) string {
	name := fmt.Sprintf("%d_%d_%s_%s_%s.pt", dim, batchSize,
		formatFloat(moduleMargin), formatFloat(lossMargin), formatFloat(lr))
	return filepath.Join(modelDir, name)
}

// formatFloat renders x the way the experiment scripts name their files:
// shortest round-trip digits, a trailing ".0" on integers, and an exponent
// outside [1e-4, 1e16).
func formatFloat(x float64) string {
	abs := math.Abs(x)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(x, 'e', -1, 64)
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Save writes params to path, replacing any previous snapshot.
func Save(path string, params []*nn.Param) error {
	blobs := make(map[string][]byte, len(params))
	for _, p := range params {
		b, err := p.Value.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s", p.Name)
		}
		blobs[p.Name] = b
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary checkpoint")
	}
	defer os.Remove(tmp.Name())

	w := snappy.NewBufferedWriter(tmp)
	if err := gob.NewEncoder(w).Encode(blobs); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to encode checkpoint")
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to flush checkpoint")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close checkpoint")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// Load reads the snapshot at path into params. Every parameter must be
// present with its current shape.
func Load(path string, params []*nn.Param) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNoCheckpoint, "%s", path)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var blobs map[string][]byte
	if err := gob.NewDecoder(snappy.NewReader(f)).Decode(&blobs); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}

	for _, p := range params {
		b, ok := blobs[p.Name]
		if !ok {
			return errors.Errorf("checkpoint %s has no parameter %s", path, p.Name)
		}
		var value mat.Dense
		if err := value.UnmarshalBinary(b); err != nil {
			return errors.Wrapf(err, "failed to decode %s", p.Name)
		}
		r, c := value.Dims()
		wr, wc := p.Value.Dims()
		if r != wr || c != wc {
			return errors.Errorf("parameter %s is %dx%d in checkpoint, want %dx%d", p.Name, r, c, wr, wc)
		}
		p.Value.Copy(&value)
	}
	return nil
}

// File saves and restores a module at a fixed path.
type File struct {
	Path string
}

// Save snapshots m.
func (f File) Save(m nn.Module) error {
	return Save(f.Path, m.Params())
}

// Load restores m.
func (f File) Load(m nn.Module) error {
	return Load(f.Path, m.Params())
}
