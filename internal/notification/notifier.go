package notification

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/model"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth, send: smtp.SendMail}
}

// Send sends an HTML email to the configured recipients.
func (n *EmailNotifier) Send(subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, n.auth, n.cfg.From, recipients(n.cfg.To), buildMessage(n.cfg, subject, htmlBody)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func recipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func buildMessage(cfg config.SMTPConfig, subject, htmlBody string) []byte {
	return []byte("To: " + cfg.To + "\r\n" +
		"From: " + cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody)
}

// LogNotifier writes notifications to the log. Used when no SMTP host is set.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(subject, htmlBody string) error {
	n.logger.Warn("Alert notification", zap.String("subject", subject), zap.Int("body_bytes", len(htmlBody)))
	return nil
}

// New picks the email notifier when SMTP is configured.
func New(cfg config.SMTPConfig, logger *zap.Logger) model.Notifier {
	if cfg.Host == "" {
		return NewLogNotifier(logger)
	}
	return NewEmailNotifier(cfg)
}
