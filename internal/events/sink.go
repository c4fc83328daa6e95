// Package events delivers progress notifications to observers. Delivery is
// best effort: a sink failure is logged and never reaches the caller.
package events

import (
	"context"
	"log/slog"

	"github.com/mcoot/lessonprogress/internal/model"
)

// Sink receives progress events
type Sink interface {
	Notify(ctx context.Context, event model.Event)
}

// LogSink writes each event as a structured log line
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

// Notify logs the event message with its fields
func (s *LogSink) Notify(ctx context.Context, event model.Event) {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.String("owner", event.Owner.String()),
		slog.Int("lesson_count", event.LessonCount),
		slog.Any("total_points", event.TotalPoints),
		slog.Any("allocated_balance", event.AllocatedBalance),
	}
	if event.LessonID != "" {
		attrs = append(attrs, slog.String("lesson_id", string(event.LessonID)))
	}
	s.logger.InfoContext(ctx, event.Message(), attrs...)
}

// Fanout forwards every event to each of its sinks in order
type Fanout []Sink

// Notify implements Sink
func (f Fanout) Notify(ctx context.Context, event model.Event) {
	for _, sink := range f {
		sink.Notify(ctx, event)
	}
}

// Discard drops every event
type Discard struct{}

// Notify implements Sink
func (Discard) Notify(context.Context, model.Event) {}
