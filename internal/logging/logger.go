// Package logging provides centralized structured logging for the
// reactor and all three protocol state machines.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// connectionCounter generates unique connection ids for log correlation.
var connectionCounter atomic.Uint64

// jobCounter generates unique forward-job ids for log correlation.
var jobCounter atomic.Uint64

// NewLogger creates a new slog.Logger at the given level ("debug",
// "info", "warn", "error"; unrecognized or empty values default to info).
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// WithListener returns a logger tagged with listener address and protocol.
func WithListener(logger *slog.Logger, address, proto string) *slog.Logger {
	return logger.With(
		slog.String("listener", address),
		slog.String("proto", proto),
	)
}

// WithConnection returns a logger tagged with a unique connection id and
// the peer's remote address.
func WithConnection(logger *slog.Logger, remoteAddr string) *slog.Logger {
	id := connectionCounter.Add(1)
	return logger.With(
		slog.Uint64("conn_id", id),
		slog.String("remote_addr", remoteAddr),
	)
}

// WithJob returns a logger tagged with a unique forward-job id.
func WithJob(logger *slog.Logger, sender, recipient string) *slog.Logger {
	id := jobCounter.Add(1)
	return logger.With(
		slog.Uint64("job_id", id),
		slog.String("sender", sender),
		slog.String("recipient", recipient),
	)
}

// TransactionWriter wraps an io.Writer, logging every write at Debug, so
// its records appear only when the logger's level is debug.
type TransactionWriter struct {
	w      io.Writer
	logger *slog.Logger
}

func NewTransactionWriter(w io.Writer, logger *slog.Logger) *TransactionWriter {
	return &TransactionWriter{w: w, logger: logger}
}

func (tw *TransactionWriter) Write(p []byte) (int, error) {
	n, err := tw.w.Write(p)
	if n > 0 {
		tw.logger.Debug("send", slog.String("data", string(p[:n])))
	}
	return n, err
}
