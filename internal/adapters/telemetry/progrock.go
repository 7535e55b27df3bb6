package telemetry

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.pactly.app/datakit/internal/core/ports"
)

// Recorder implements ports.Tracer on a progrock tape: each refresh becomes
// a vertex, so an interactive caller can render refresh progress.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a Recorder over a fresh tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a Recorder emitting to the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Start records a new vertex for the named unit of work.
func (r *Recorder) Start(ctx context.Context, name string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	v := r.rec.Vertex(digest.FromString(name), name)
	return ctx, &vertexSpan{vertex: v}
}

// EmitPlan records the set of resource keys about to refresh as its own
// vertex.
func (r *Recorder) EmitPlan(_ context.Context, keys []string) {
	v := r.rec.Vertex(digest.FromString("plan"), "plan")
	for _, key := range keys {
		_, _ = fmt.Fprintf(v.Stdout(), "refresh %s\n", key)
	}
	v.Done(nil)
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// vertexSpan implements ports.Span wrapping *progrock.VertexRecorder.
type vertexSpan struct {
	vertex *progrock.VertexRecorder
	err    error
}

// Write captures log output on the vertex's stdout stream.
func (s *vertexSpan) Write(p []byte) (n int, err error) {
	return s.vertex.Stdout().Write(p)
}

// RecordError stores the error reported against this span.
func (s *vertexSpan) RecordError(err error) {
	s.err = err
}

// SetAttribute records a key-value pair as a log line on the vertex.
func (s *vertexSpan) SetAttribute(key string, value any) {
	_, _ = fmt.Fprintf(s.vertex.Stdout(), "%s=%v\n", key, value)
}

// End completes the vertex, carrying any recorded error.
func (s *vertexSpan) End() {
	s.vertex.Done(s.err)
}
