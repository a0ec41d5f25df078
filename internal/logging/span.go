package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a named unit of work such as a profile aggregation or a token
// rotation. Its logger carries trace_id and span_id attributes.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx. The first span of a request reuses
// the request id as its trace id so spans and access logs can be joined.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	parent := traceFromContext(ctx)
	logger := FromContext(ctx)

	current := trace{traceID: parent.traceID, spanID: uuid.NewString()}
	if current.traceID == "" {
		current.traceID = RequestIDFromContext(ctx)
		if current.traceID == "" {
			current.traceID = uuid.NewString()
		}
		logger = logger.With(slog.String("trace_id", current.traceID))
	}

	attrs := []any{slog.String("span", name), slog.String("span_id", current.spanID)}
	if parent.spanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent.spanID))
	}
	logger = logger.With(attrs...)

	ctx = context.WithValue(ctx, traceKey, current)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// RecordError marks the span as failed. The first error wins.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil || s.err != nil {
		return
	}
	s.err = err
}

// End emits a completion entry: debug on success, warn when an error was recorded.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.Any("error", s.err))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
