// Package mail is the notification delivery collaborator. Delivery is
// fire-and-forget from the caller's point of view: the reset flow does not
// depend on the outcome.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers account emails
type Sender interface {
	SendPasswordReset(ctx context.Context, email, resetLink string) error
}

// LogSender writes the reset link to the log instead of sending mail.
// Used in development and tests, where no mail infrastructure exists.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-backed Sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendPasswordReset logs the reset link
func (s *LogSender) SendPasswordReset(_ context.Context, email, resetLink string) error {
	s.logger.Info("Password reset link issued",
		zap.String("email", email),
		zap.String("reset_link", resetLink),
	)
	return nil
}
