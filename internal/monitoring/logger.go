package monitoring

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with pipeline-specific helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new JSON logger
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRun returns a logger that stamps every record with the run id
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.Logger.With("run_id", runID)}
}

// RunLogger logs pipeline run boundaries
func (l *Logger) RunLogger(repo string, taskNumber int, stage string, duration time.Duration) {
	l.Info("Pipeline Stage",
		"repo", repo,
		"task_number", taskNumber,
		"stage", stage,
		"duration_ms", duration.Milliseconds(),
	)
}

// OracleLogger logs relevance oracle batch outcomes
func (l *Logger) OracleLogger(tier string, batch, width, valid int, duration time.Duration) {
	level := slog.LevelInfo
	if valid == 0 {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "Relevance Batch",
		"model_tier", tier,
		"batch", batch,
		"width", width,
		"valid_samples", valid,
		"duration_ms", duration.Milliseconds(),
	)
}

// SignerLogger logs payout permit generation
func (l *Logger) SignerLogger(recipient string, amount, currency string, success bool, duration time.Duration) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelError
	}

	l.Log(context.Background(), level, "Permit Generated",
		"recipient", recipient,
		"amount", amount,
		"currency", currency,
		"success", success,
		"duration_ms", duration.Milliseconds(),
	)
}

// SettlementLogger logs the final settlement summary for a task
func (l *Logger) SettlementLogger(repo string, taskNumber, recipients, fallback int, total, currency string) {
	l.Info("Settlement Posted",
		"repo", repo,
		"task_number", taskNumber,
		"recipients", recipients,
		"fallback_entries", fallback,
		"total", total,
		"currency", currency,
	)
}

// DegradedLogger logs partial-data failures folded into degraded output
func (l *Logger) DegradedLogger(source, reason string) {
	l.Warn("Degraded Data Source",
		"source", source,
		"reason", reason,
	)
}

// ExternalAPILogger logs external collaborator calls
func (l *Logger) ExternalAPILogger(apiName, method, endpoint string, statusCode int, duration time.Duration, success bool) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "External API Call",
		"api_name", apiName,
		"method", method,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"success", success,
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key string, hit bool) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key", key,
		"hit", hit,
	)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	l.Logger = slog.New(handler)
}
