// Package logger builds the structured logr.Logger used across logql-cli:
// a zap JSON core wrapped by zapr.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	TimeStampKey = "timestamp"
	MessageKey   = "message"
	VersionKey   = "version"
)

type loggerContextKey struct{}

// Options configures New.
type Options struct {
	// Verbosity is the highest logr V-level that is emitted.
	Verbosity int
	// Output receives JSON lines. Nil discards everything.
	Output  io.Writer
	Version string
}

// New returns a logger and a sync function to call before exit.
func New(opts Options) (logr.Logger, func()) {
	if opts.Output == nil {
		return logr.Discard(), func() {}
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = TimeStampKey
	encoderCfg.MessageKey = MessageKey

	// logr V(n) maps to zap level -n.
	level := zapcore.Level(-int8(max(opts.Verbosity, 0)))
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(opts.Output)),
		zap.NewAtomicLevelAt(level),
	)
	if opts.Version != "" {
		core = core.With([]zapcore.Field{zap.String(VersionKey, opts.Version)})
	}
	zl := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	return zapr.NewLogger(zl), func() { syncLogger(zl) }
}

// Open is New writing to path, appending. An empty path discards.
func Open(path string, verbosity int, version string) (logr.Logger, func(), error) {
	if path == "" {
		l, sync := New(Options{})
		return l, sync, nil
	}
	if path == "-" {
		l, sync := New(Options{Verbosity: verbosity, Output: os.Stderr, Version: version})
		return l, sync, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("opening log file: %w", err)
	}
	l, sync := New(Options{Verbosity: verbosity, Output: f, Version: version})
	return l, func() {
		sync()
		_ = f.Close()
	}, nil
}

// WithLogger returns a context carrying log.
func WithLogger(ctx context.Context, log logr.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext returns the logger stored by WithLogger, or a discard logger.
func FromContext(ctx context.Context) logr.Logger {
	if log, ok := ctx.Value(loggerContextKey{}).(logr.Logger); ok {
		return log
	}
	return logr.Discard()
}

func syncLogger(zl *zap.Logger) {
	if err := zl.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "WARNING: failed to sync zap logger: %v\n", err)
	}
}

// isIgnorableSyncError reports Sync errors that pipes and TTYs return.
func isIgnorableSyncError(err error) bool {
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EBADF) {
		return true
	}
	return strings.Contains(err.Error(), "The handle is invalid")
}
