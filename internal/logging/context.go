package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldFrame is the structured logging key for frame numbers.
	FieldFrame = "frame"
	// FieldRunID is the structured logging key for the identifier of one CLI run.
	FieldRunID = "run_id"
	// FieldEventType names the category of a warning or error.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType labels decision logs.
	FieldDecisionType = "decision_type"
)

type ctxKey int

const (
	frameKey ctxKey = iota
	runIDKey
)

// WithFrame records the frame being processed.
func WithFrame(ctx context.Context, frame int) context.Context {
	return context.WithValue(ctx, frameKey, frame)
}

// FrameFromContext returns the frame stored by WithFrame.
func FrameFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	n, ok := ctx.Value(frameKey).(int)
	return n, ok
}

// WithRunID records the identifier of the current run.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if n, ok := FrameFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldFrame, n))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
