// Package notify delivers out-of-band messages (email, SMS) to users and guardians.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// EmailMessage is a single-recipient email.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// SMSMessage is a single text message.
type SMSMessage struct {
	To   string
	Body string
}

// EmailSender sends emails.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender sends text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
}

// LogSender stands in for an unconfigured channel and only records what would have been sent.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("notify")}
}

// SendEmail implements EmailSender.
func (l *LogSender) SendEmail(_ context.Context, msg EmailMessage) error {
	l.logger.Debug("email delivery disabled", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// SendSMS implements SMSSender.
func (l *LogSender) SendSMS(_ context.Context, msg SMSMessage) error {
	l.logger.Debug("sms delivery disabled", zap.String("to", msg.To))
	return nil
}
