// Package tracing records lightweight span trees in a context. The resolver
// opens one child span per attempted strategy; the API flattens those spans
// into an explanation of how an input was resolved.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// View is an immutable, JSON friendly copy of a span.
type View struct {
	Name       string         `json:"name"`
	DurationUS int64          `json:"duration_us"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Children   []View         `json:"children,omitempty"`
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent the
// child is a detached root and costs only its allocation.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name, "")
	if parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, child), child
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}
}

// End records the span's end time and duration.
func (s *Span) End() {
	s.mu.Lock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// View copies the span tree.
func (s *Span) View() View {
	s.mu.Lock()
	v := View{
		Name:       s.Name,
		DurationUS: s.Duration.Microseconds(),
	}
	if len(s.Attrs) > 0 {
		v.Attrs = make(map[string]any, len(s.Attrs))
		for k, val := range s.Attrs {
			v.Attrs[k] = val
		}
	}
	children := make([]*Span, len(s.Children))
	copy(children, s.Children)
	s.mu.Unlock()

	for _, c := range children {
		v.Children = append(v.Children, c.View())
	}
	return v
}

// Log writes the span tree to slog at debug level.
func (s *Span) Log() {
	s.logRecursive(0)
}

func (s *Span) logRecursive(depth int) {
	v := s.View()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", v.Name,
		"duration_us", v.DurationUS,
		"depth", depth,
	}
	keys := make([]string, 0, len(v.Attrs))
	for k := range v.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, v.Attrs[k])
	}
	slog.Debug("span", attrs...)

	s.mu.Lock()
	children := make([]*Span, len(s.Children))
	copy(children, s.Children)
	s.mu.Unlock()
	for _, child := range children {
		child.logRecursive(depth + 1)
	}
}
