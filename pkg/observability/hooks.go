package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/skillflow/pkg/domain"
)

// LoggingHooks logs every turn and transition.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("turn_start", "session_id", e.SessionID, "type", e.Type, "intent", e.Intent)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Info("transition", "session_id", e.SessionID, "intent", e.Intent, "from", e.From, "to", e.To)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.Warn("turn_end", "session_id", e.SessionID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Debug("turn_end", "session_id", e.SessionID, "duration", e.Duration, "terminated", e.Terminated)
		},
	}
}

// Combine fans every event out to each hook set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		s := s
		if s.OnTurnStart != nil {
			prev := out.OnTurnStart
			out.OnTurnStart = func(ctx context.Context, e *domain.TurnEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				s.OnTurnStart(ctx, e)
			}
		}
		if s.OnTransition != nil {
			prev := out.OnTransition
			out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				s.OnTransition(ctx, e)
			}
		}
		if s.OnTurnEnd != nil {
			prev := out.OnTurnEnd
			out.OnTurnEnd = func(ctx context.Context, e *domain.TurnEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				s.OnTurnEnd(ctx, e)
			}
		}
	}
	return out
}
