package messaging

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailConfig holds SMTP settings for the email channel
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	SenderName string
	From       string
}

// EmailMessenger delivers prompts over SMTP for submitters who mail their
// receipts in. Interactive elements degrade to numbered text options; the
// submitter replies with the number or the option id.
type EmailMessenger struct {
	cfg    EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

// NewEmailMessenger creates an email messenger
func NewEmailMessenger(cfg EmailConfig, logger *zap.Logger) *EmailMessenger {
	return &EmailMessenger{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger,
	}
}

// SendText sends a plain text email
func (m *EmailMessenger) SendText(ctx context.Context, to, body string) error {
	return m.deliver(to, body)
}

// SendButtons degrades buttons to a numbered option list
func (m *EmailMessenger) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n")
	for i, btn := range buttons {
		fmt.Fprintf(&b, "%d. %s\n", i+1, btn.Title)
	}
	b.WriteString("\nReply with the number of your choice.")
	return m.deliver(to, b.String())
}

// SendList degrades a list to numbered sections
func (m *EmailMessenger) SendList(ctx context.Context, to, body, buttonLabel string, sections []ListSection) error {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	n := 1
	for _, section := range sections {
		if section.Title != "" {
			fmt.Fprintf(&b, "\n%s:\n", section.Title)
		}
		for _, row := range section.Rows {
			fmt.Fprintf(&b, "%d. %s", n, row.Title)
			if row.Description != "" {
				fmt.Fprintf(&b, " - %s", row.Description)
			}
			b.WriteString("\n")
			n++
		}
	}
	b.WriteString("\nReply with the number of your choice.")
	return m.deliver(to, b.String())
}

func (m *EmailMessenger) deliver(to, body string) error {
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: Payment receipt\r\n\r\n%s",
		m.cfg.SenderName, m.cfg.From, to, body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", zap.String("to", to))
	return nil
}
