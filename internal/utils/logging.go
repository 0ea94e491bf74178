package utils

import (
	"context"
	"log/slog"

	"github.com/pavise/maskeval/internal/models"
)

// FindingsToSlog writes validation findings to the default logger at
// debug level. It is a no-op unless debug logging is enabled, so callers
// can invoke it unconditionally on hot paths.
func FindingsToSlog(source string, findings []models.Finding) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	for _, f := range findings {
		attrs := []any{
			"source", source,
			"severity", string(f.Severity),
			"category", f.Category,
		}

		attrs = addIf(attrs, "sample", f.Sample)
		attrs = addIf(attrs, "metric", f.Metric)
		attrs = addIf(attrs, "recommendation", f.Recommendation)

		slog.Debug(f.Message, attrs...)
	}
}

// addIf appends a key/value pair only when the value is non-empty.
func addIf(attrs []any, name, v string) []any {
	if v != "" {
		attrs = append(attrs, name)
		attrs = append(attrs, v)
	}

	return attrs
}
