package events

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mediahub.app/sessioncore/internal/core"
)

// Fanout dispatches a single notification kind to every target concurrently
// and joins before returning. Individual failures are logged and never
// abort siblings or the caller — errgroup.Group is used purely as a join
// primitive here, not for its error-propagation/cancel-on-error behavior,
// so every goroutine always returns nil.
func (b *Bus) Fanout(ctx context.Context, kind core.NotificationKind, targets []Target) {
	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := b.dispatchOne(ctx, kind, t); err != nil {
				b.logger.Error("notification_fanout_failed",
					slog.String("kind", string(kind)),
					slog.String("session_id", t.SessionID),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Bus) dispatchOne(ctx context.Context, kind core.NotificationKind, t Target) error {
	switch kind {
	case core.NotificationSessionEnded:
		return t.Controller.SendSessionEndedNotification(ctx, t.Dto)
	case core.NotificationPlaybackStart:
		return t.Controller.SendPlaybackStartNotification(ctx, t.Dto)
	case core.NotificationPlaybackStopped:
		return t.Controller.SendPlaybackStoppedNotification(ctx, t.Dto)
	case core.NotificationServerRestart:
		return t.Controller.SendServerRestartNotification(ctx)
	case core.NotificationServerShutdown:
		return t.Controller.SendServerShutdownNotification(ctx)
	case core.NotificationRestartRequired:
		return t.Controller.SendRestartRequiredNotification(ctx)
	default:
		return nil
	}
}
