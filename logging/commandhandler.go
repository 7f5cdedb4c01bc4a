package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/invopay/billing"
)

// WithCommandLogging wraps a CommandHandler with logging functionality.
// It logs the command type and origin ID before execution, and logs
// errors if the command fails.
func WithCommandLogging(logger *logrus.Entry, next billing.CommandHandler) billing.CommandHandler {
	return func(ctx context.Context, command billing.Command) (billing.AppendResult, error) {
		l := logger.WithFields(logrus.Fields{
			"command":    command.Payload.CommandType(),
			"origin-id":  command.OriginID,
			"command-id": command.CommandID,
		})
		l.Debug("dispatching command")

		result, err := next(ctx, command)
		if err != nil {
			l.WithError(err).Error("command failed")
			return result, err
		}

		l.WithField("next-expected-version", result.NextExpectedVersion).
			Debug("command handled")
		return result, nil
	}
}
