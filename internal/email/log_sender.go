package email

import (
	"context"
	"log/slog"
)

// LogSender logs emails instead of sending them. It logs recipients and full
// bodies including approval links, so it is only meant for development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger,
	}
}

// Send logs the email at info level.
func (s *LogSender) Send(ctx context.Context, from, recipient Address, subject, body string) error {
	s.logger.InfoContext(ctx, "email not sent, logged instead",
		slog.Group("email",
			slog.String("from", string(from)),
			slog.String("recipient", string(recipient)),
			slog.String("subject", subject),
			slog.String("body", body),
		),
	)
	return nil
}
