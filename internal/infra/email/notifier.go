package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// SMTPNotifier delivers lifecycle notifications to a fixed recipient.
// Best effort only: callers log and move on when delivery fails.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) Notify(_ context.Context, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	)

	if err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg)); err != nil {
		n.logger.Warn("failed to send notification",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send notification: %w", err)
	}

	n.logger.Info("notification sent", zap.String("subject", subject))
	return nil
}
