// Package mail delivers outbound notification email. The orchestrating
// service only depends on the Sender interface; delivery transport and
// failure injection for tests live behind it.
package mail

import (
	"context"

	"github.com/sgalindo-dev/veriauth/internal/logging"
)

// Sender delivers a single HTML email. Implementations may fail
// transiently; retry policy is the caller's concern.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogSender logs messages instead of delivering them. Used when SMTP is
// disabled, typically in local development.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{logger: l.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	s.logger.Info(ctx, "smtp disabled, logging email instead", "to", to, "subject", subject, "body_bytes", len(htmlBody))
	return nil
}
