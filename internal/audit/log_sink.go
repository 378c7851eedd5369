// AngelaMos | 2026
// log_sink.go

package audit

import (
	"context"
	"log/slog"
)

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Write(ctx context.Context, e Entry) error {
	attrs := []any{
		"id", e.ID,
		"event", e.Event,
		"outcome", e.Outcome,
		"username", e.Username,
		"ip", e.IPAddress,
	}
	if e.AccountID != nil {
		attrs = append(attrs, "account_id", *e.AccountID)
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}

	s.logger.InfoContext(ctx, "auth event", attrs...)
	return nil
}
