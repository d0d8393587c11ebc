// Package config resolves the hyperparameters of a run, either from the
// command line or from a sweep assignment.
package config

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Hyperparams are the values a sweep may override.
type Hyperparams struct {
	DatasetName  string  `yaml:"dataset_name"`
	EmbedDim     int     `yaml:"embed_dim"`
	ModuleMargin float64 `yaml:"module_margin"`
	LossMargin   float64 `yaml:"loss_margin"`
	LearningRate float64 `yaml:"learning_rate"`
}

// Map returns the hyperparameters keyed by their yaml names.
func (h Hyperparams) Map() map[string]interface{} {
	return map[string]interface{}{
		"dataset_name":  h.DatasetName,
		"embed_dim":     h.EmbedDim,
		"module_margin": h.ModuleMargin,
		"loss_margin":   h.LossMargin,
		"learning_rate": h.LearningRate,
	}
}

// Fields returns the hyperparameters as log fields.
func (h Hyperparams) Fields() []zap.Field {
	return []zap.Field{
		zap.String("dataset_name", h.DatasetName),
		zap.Int("embed_dim", h.EmbedDim),
		zap.Float64("module_margin", h.ModuleMargin),
		zap.Float64("loss_margin", h.LossMargin),
		zap.Float64("learning_rate", h.LearningRate),
	}
}

// Provider resolves the hyperparameters of a run.
type Provider interface {
	Hyperparams() (Hyperparams, error)
}

// NewProvider returns a FlagProvider over flags when noSweep is set and a
// SweepProvider reading sweepPath otherwise.
func NewProvider(noSweep bool, flags Hyperparams, sweepPath string) Provider {
	if noSweep {
		return FlagProvider{Values: flags}
	}
	return SweepProvider{Path: sweepPath}
}

// FlagProvider returns the values given on the command line.
type FlagProvider struct {
	Values Hyperparams
}

func (p FlagProvider) Hyperparams() (Hyperparams, error) {
	return p.Values, nil
}

// SweepProvider reads a sweep assignment from a yaml file. Each key holds
// either a plain value or a mapping with a "value" entry:
//
//	embed_dim: 50
//	learning_rate:
//	  value: 0.001
type SweepProvider struct {
	Path string
}

func (p SweepProvider) Hyperparams() (Hyperparams, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Hyperparams{}, errors.Wrapf(err, "failed to read sweep config")
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Hyperparams{}, errors.Wrapf(err, "failed to parse %s", p.Path)
	}

	var h Hyperparams
	if h.DatasetName, err = stringValue(raw, "dataset_name"); err != nil {
		return h, errors.Wrapf(err, "%s", p.Path)
	}
	if h.EmbedDim, err = intValue(raw, "embed_dim"); err != nil {
		return h, errors.Wrapf(err, "%s", p.Path)
	}
	if h.ModuleMargin, err = floatValue(raw, "module_margin"); err != nil {
		return h, errors.Wrapf(err, "%s", p.Path)
	}
	if h.LossMargin, err = floatValue(raw, "loss_margin"); err != nil {
		return h, errors.Wrapf(err, "%s", p.Path)
	}
	if h.LearningRate, err = floatValue(raw, "learning_rate"); err != nil {
		return h, errors.Wrapf(err, "%s", p.Path)
	}
	return h, nil
}

func lookup(raw map[string]interface{}, key string) (interface{}, error) {
	v, ok := raw[key]
	if !ok {
		return nil, errors.Errorf("missing %s", key)
	}
	if m, ok := v.(map[string]interface{}); ok {
		if v, ok = m["value"]; !ok {
			return nil, errors.Errorf("%s has no value", key)
		}
	}
	return v, nil
}

func stringValue(raw map[string]interface{}, key string) (string, error) {
	v, err := lookup(raw, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("%s: want a string, got %v", key, v)
	}
	return s, nil
}

func floatValue(raw map[string]interface{}, key string) (float64, error) {
	v, err := lookup(raw, key)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, errors.Errorf("%s: want a number, got %v", key, v)
}

func intValue(raw map[string]interface{}, key string) (int, error) {
	f, err := floatValue(raw, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.Errorf("%s: want an integer, got %v", key, f)
	}
	return int(f), nil
}
