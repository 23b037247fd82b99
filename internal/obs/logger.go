// Package obs provides the ambient structured logger used across oauthcore.
// It mirrors the teacher's singleton-over-slog pattern: a process-wide
// *slog.Logger behind an atomic pointer, swappable for tests, defaulting to
// a human-readable handler and falling back to JSON when
// OAUTHCORE_UNSTRUCTURED_LOGS=false.
//
// Call sites MUST NOT pass secret material (token/refresh/verifier/state
// bytes) to these functions; use secret.Secret's Redacted stand-in instead.
package obs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

// envReader abstracts os.Getenv for testing without real environment mutation.
type envReader interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func init() {
	InitializeWithEnv(osEnv{})
}

// unstructuredLogsWithEnv reports whether the human-readable text handler
// should be used, defaulting to true (unstructured) unless the env var is
// explicitly "false".
func unstructuredLogsWithEnv(env envReader) bool {
	v := env.Getenv("OAUTHCORE_UNSTRUCTURED_LOGS")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// InitializeWithEnv (re)builds the singleton logger from the given env reader.
func InitializeWithEnv(env envReader) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if unstructuredLogsWithEnv(env) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	singleton.Store(slog.New(handler))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// SetForTest replaces the singleton logger, for use in tests only.
func SetForTest(l *slog.Logger) (restore func()) {
	prev := singleton.Load()
	singleton.Store(l)
	return func() { singleton.Store(prev) }
}

func Debugf(format string, args ...any) { Get().Debug(sprintf(format, args...)) }
func Infof(format string, args ...any)  { Get().Info(sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Get().Warn(sprintf(format, args...)) }
func Errorf(format string, args ...any) { Get().Error(sprintf(format, args...)) }

func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }
func Infow(msg string, kv ...any)  { Get().Info(msg, kv...) }
func Warnw(msg string, kv ...any)  { Get().Warn(msg, kv...) }
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// DebugContext logs at debug level, attaching values carried on ctx via
// slog's context-aware handlers if configured.
func DebugContext(ctx context.Context, msg string, kv ...any) { Get().DebugContext(ctx, msg, kv...) }

func sprintf(format string, args ...any) string { return fmt.Sprintf(format, args...) }
