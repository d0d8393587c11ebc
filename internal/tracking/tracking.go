// Package tracking records experiment runs: the hyperparameters a run
// started with and the metrics it reported along the way.
package tracking

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Tracker is a write-only sink for run configuration and metrics.
type Tracker interface {
	// Config records the hyperparameters of the run.
	Config(values map[string]interface{}) error
	// Log records values reported at step.
	Log(step int, values map[string]interface{}) error
	Close() error
}

// Run identifies an experiment run.
type Run struct {
	Entity  string
	Project string
	Group   string
	Name    string
}

// NewRun returns a run of the ppi experiment group.
func NewRun(name string) Run {
	return Run{
		Entity:  "zhapacfp_team",
		Project: "ontoem",
		Group:   "ppi",
		Name:    name,
	}
}

// ErrUnknownTracker is returned by Open for unknown kinds.
var ErrUnknownTracker = errors.New("unknown tracker")

// Open returns the tracker of the given kind: "sqlite" stores the run in
// the database at path, "log" writes it to logger, "none" discards it.
func Open(kind, path string, run Run, logger *zap.Logger) (Tracker, error) {
	switch strings.ToLower(kind) {
	case "sqlite":
		return OpenSQLite(path, run)
	case "log":
		return NewLogTracker(logger, run), nil
	case "none", "":
		return Nop{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTracker, "%q", kind)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Config(map[string]interface{}) error   { return nil }
func (Nop) Log(int, map[string]interface{}) error { return nil }
func (Nop) Close() error                          { return nil }

// LogTracker writes every record as a structured log line.
type LogTracker struct {
	logger *zap.Logger
}

// NewLogTracker returns a tracker logging to logger.
func NewLogTracker(logger *zap.Logger, run Run) *LogTracker {
	return &LogTracker{logger: logger.With(
		zap.String("project", run.Project),
		zap.String("group", run.Group),
		zap.String("run", run.Name),
	)}
}

func (t *LogTracker) Config(values map[string]interface{}) error {
	t.logger.Info("run config", fields(values)...)
	return nil
}

func (t *LogTracker) Log(step int, values map[string]interface{}) error {
	t.logger.Info("run metrics", append([]zap.Field{zap.Int("step", step)}, fields(values)...)...)
	return nil
}

// Close flushes the logger. Sync errors on terminals are ignored.
func (t *LogTracker) Close() error {
	_ = t.logger.Sync()
	return nil
}

func fields(values map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(values))
	for _, k := range sortedKeys(values) {
		out = append(out, zap.Any(k, values[k]))
	}
	return out
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
