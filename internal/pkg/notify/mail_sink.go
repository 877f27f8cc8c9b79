package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/invobr/paysync/internal/pkg/env"
)

// RecipientSource resolves the notification address for a tenant.
type RecipientSource interface {
	NotifyEmail(ctx context.Context, tenantID uint) (string, error)
}

// MailSink delivers events via SMTP to the tenant's configured address.
// Delivery failures are logged, never propagated into reconciliation.
type MailSink struct {
	recipients RecipientSource
}

func NewMailSink(recipients RecipientSource) *MailSink {
	return &MailSink{recipients: recipients}
}

func (s *MailSink) Dispatch(ctx context.Context, ev Event) error {
	to, err := s.recipients.NotifyEmail(ctx, ev.TenantID)
	if err != nil || strings.TrimSpace(to) == "" {
		log.Warnf("[Notify] no recipient for tenant %d, dropping %s event", ev.TenantID, ev.Kind)
		return nil
	}

	subject := fmt.Sprintf("Payment update: %s", ev.Kind)
	body := fmt.Sprintf("<p>Resource %s is now <b>%s</b>.</p><p>Amount: %s %s</p>",
		ev.ResourceID, ev.Kind, ev.Amount.StringFixed(2), ev.Currency)

	if err := sendMail(to, subject, body); err != nil {
		log.Errorf("[Notify] mail dispatch failed for tenant %d: %v", ev.TenantID, err)
	}
	return nil
}

func sendMail(to, subject, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = "no-reply@localhost"
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	return smtp.SendMail(addr, auth, sender, []string{to}, msg)
}
