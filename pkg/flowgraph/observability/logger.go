// Package observability provides structured logging, metrics, and tracing
// for flowgraph runs.
//
// Logging uses log/slog. Metrics and spans use OpenTelemetry and the global
// providers. Every feature has a no-op form and all log helpers accept a nil
// logger.
package observability

import (
	"log/slog"
	"time"
)

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting", slog.String("run_id", runID))
}

// LogRunComplete logs a run that reached END.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunAbandoned logs a run whose consumer stopped pulling before END.
func LogRunAbandoned(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run abandoned by consumer",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs a failed run.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogRetryScheduled logs a retry decision. attempt is 1-based.
func LogRetryScheduled(logger *slog.Logger, attempt, maxRetries int, delay time.Duration, cause string) {
	if logger == nil {
		return
	}
	logger.Info("retry scheduled",
		slog.Int("attempt", attempt),
		slog.Int("max_retries", maxRetries),
		slog.Duration("delay", delay),
		slog.String("cause", cause),
	)
}

// LogRetryExhausted logs a failure that will not be retried.
func LogRetryExhausted(logger *slog.Logger, retries int, retryable bool, cause string) {
	if logger == nil {
		return
	}
	logger.Error("unrecoverable error or max retries reached",
		slog.Int("retries", retries),
		slog.Bool("retryable", retryable),
		slog.String("cause", cause),
	)
}

// TimedOperation returns a function reporting elapsed milliseconds.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
