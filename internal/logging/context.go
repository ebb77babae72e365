package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type collectionCtxKey struct{}
type documentCtxKey struct{}
type questionCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if collection := CollectionFromContext(ctx); collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}
	if document := DocumentFromContext(ctx); document != "" {
		fields = append(fields, zap.String("document", document))
	}
	if questionID := QuestionIDFromContext(ctx); questionID != "" {
		fields = append(fields, zap.String("question_id", questionID))
	}

	return fields
}

// ContextWithCollection attaches the active collection name to the context.
func ContextWithCollection(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, collectionCtxKey{}, name)
}

// CollectionFromContext returns the collection name, or "" if unset.
func CollectionFromContext(ctx context.Context) string {
	v, _ := ctx.Value(collectionCtxKey{}).(string)
	return v
}

// ContextWithDocument attaches the document name being processed.
func ContextWithDocument(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, name)
}

// DocumentFromContext returns the document name, or "" if unset.
func DocumentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(documentCtxKey{}).(string)
	return v
}

// ContextWithQuestionID attaches the exam question ID being evaluated.
func ContextWithQuestionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, questionCtxKey{}, id)
}

// QuestionIDFromContext returns the question ID, or "" if unset.
func QuestionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(questionCtxKey{}).(string)
	return v
}
