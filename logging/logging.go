// Package logging holds the verbosity levels shared by every component and
// the zap-backed logr constructor used by binaries.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V(...).
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// NewLogger builds a zap logger at the given logr verbosity and wraps it as a
// logr.Logger. The returned sync func flushes buffered entries.
func NewLogger(verbosity int, development bool) (logr.Logger, func() error, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	// logr V(n) maps to zap level -n.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1 * verbosity))
	zapLog, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard(), func() error { return nil }, fmt.Errorf("building zap logger: %w", err)
	}
	return zapr.NewLogger(zapLog), zapLog.Sync, nil
}
