package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/invopay/billing"
)

// WithEventLogging wraps an EventHandler with logging functionality.
func WithEventLogging(logger *logrus.Entry, next billing.EventHandler) billing.EventHandler {
	return billing.NewEventHandlerFunc(func(ctx context.Context, event billing.Event) error {
		l := logger.WithFields(logrus.Fields{
			"event":          event.EventType(),
			"stream-id":      billing.StreamIDFromContext(ctx),
			"command-id":     billing.CommandIDFromContext(ctx),
			"version":        billing.VersionFromContext(ctx),
			"global-version": billing.GlobalVersionFromContext(ctx),
		})

		l.Debug("event processing started")

		if err := next.Handle(ctx, event); err != nil {
			l.WithError(err).Error("error processing event")
			return err
		}

		l.Debug("event processed successfully")
		return nil
	})
}
