// Package logging builds the process logger.
package logging

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger with datetime and caller information that splits
// output to stdout and stderr based on level. Records below level are
// dropped; json selects the JSON encoder over the console one.
func New(level string, json bool) (*zap.Logger, error) {
	var min zapcore.Level
	if err := min.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= min
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= min
	})
	stdoutWriter := zapcore.Lock(os.Stdout)
	stderrWriter := zapcore.Lock(os.Stderr)

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewConsoleEncoder(config)
	if json {
		encoder = zapcore.NewJSONEncoder(config)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stderrWriter, isErrorLevel),
		zapcore.NewCore(encoder, stdoutWriter, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller()), nil
}
