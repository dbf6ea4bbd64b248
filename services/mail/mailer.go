// Package mail composes and delivers account emails.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/upb/tenant-platform/models"
	"go.uber.org/zap"
)

// Message is an outbound email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends or simulates sending emails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them
type LogMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

// Send logs msg
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email queued",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// Notifier renders account emails and hands them to a Mailer
type Notifier struct {
	mailer Mailer
	appURL string
}

// NewNotifier creates a Notifier whose links point at appURL
func NewNotifier(mailer Mailer, appURL string) *Notifier {
	return &Notifier{
		mailer: mailer,
		appURL: strings.TrimRight(appURL, "/"),
	}
}

// SendVerification mails the email verification link
func (n *Notifier) SendVerification(ctx context.Context, user *models.User, rawToken string) error {
	link := n.link("verify-email", rawToken)
	return n.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening the link below:\n\n%s\n",
			user.Name, link),
	})
}

// SendPasswordReset mails the password reset link
func (n *Notifier) SendPasswordReset(ctx context.Context, user *models.User, rawToken string) error {
	link := n.link("reset-password", rawToken)
	return n.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hello %s,\n\nA password reset was requested for your account. Use the link below to choose a new password:\n\n%s\n\nIf you did not request this, ignore this email.\n",
			user.Name, link),
	})
}

func (n *Notifier) link(action, rawToken string) string {
	return fmt.Sprintf("%s/auth/%s/%s", n.appURL, action, url.PathEscape(rawToken))
}
