package usecase

import (
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

// publish emits a lifecycle event. Delivery failures are logged and never
// fail the calling operation.
func publish(ctx domain.Context, pub domain.EventPublisher, t domain.EventType, sessionID string, attrs map[string]any) {
	if pub == nil {
		return
	}
	e := domain.Event{Type: t, SessionID: sessionID, OccurredAt: time.Now().UTC(), Attributes: attrs}
	if err := pub.Publish(ctx, e); err != nil {
		intobs.LoggerFromContext(ctx).Warn("event publish failed",
			slog.String("event_type", string(t)), slog.Any("error", err))
	}
}

func nowFunc(f func() time.Time) time.Time {
	if f != nil {
		return f()
	}
	return time.Now().UTC()
}
