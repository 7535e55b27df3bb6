package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for recording refresh spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals that refreshes for a set of resource keys are about
	// to run.
	EmitPlan(ctx context.Context, keys []string)
}

// Span represents one unit of work, typically a single refresh.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Placeholder to support the option pattern.
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)
