package notification

import (
	"context"
	"fmt"

	"fieldops_backend/platform/config"

	"github.com/wneessen/go-mail"
)

// Sender delivers installer-facing emails. Implementations must be safe
// for concurrent use.
type Sender interface {
	SendTaskAssignedEmail(ctx context.Context, toEmail, installerName, taskNo, scheduledDate, timeSlot, address string) error
	SendTaskRejectedEmail(ctx context.Context, toEmail, installerName, taskNo, reason string) error
	SendVisitReminderEmail(ctx context.Context, toEmail, installerName, taskNo, scheduledDate, timeSlot, address string) error
}

// NoopSender is used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendTaskAssignedEmail(context.Context, string, string, string, string, string, string) error {
	return nil
}

func (NoopSender) SendTaskRejectedEmail(context.Context, string, string, string, string) error {
	return nil
}

func (NoopSender) SendVisitReminderEmail(context.Context, string, string, string, string, string, string) error {
	return nil
}

// SMTPSender delivers email over SMTP.
type SMTPSender struct {
	client    *mail.Client
	fromName  string
	fromEmail string
}

// NewSender builds the configured sender, or a noop when email is disabled.
func NewSender(cfg config.SMTPConfig) (Sender, error) {
	if !cfg.IsEmailEnabled() {
		return NoopSender{}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.GetSMTPUsername() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.GetSMTPUsername()),
			mail.WithPassword(cfg.GetSMTPPassword()),
		)
	}

	client, err := mail.NewClient(cfg.GetSMTPHost(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPSender{
		client:    client,
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}, nil
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	return s.client.DialAndSendWithContext(ctx, msg)
}

func (s *SMTPSender) SendTaskAssignedEmail(ctx context.Context, toEmail, installerName, taskNo, scheduledDate, timeSlot, address string) error {
	subject := fmt.Sprintf("New installation task %s", taskNo)
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>You have been assigned installation task <strong>%s</strong>.</p><p>Date: %s<br>Time: %s<br>Address: %s</p>`,
		installerName, taskNo, orDash(scheduledDate), orDash(timeSlot), orDash(address),
	)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) SendTaskRejectedEmail(ctx context.Context, toEmail, installerName, taskNo, reason string) error {
	subject := fmt.Sprintf("Rework needed on task %s", taskNo)
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Task <strong>%s</strong> was sent back for rework.</p><p>Reason: %s</p>`,
		installerName, taskNo, reason,
	)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) SendVisitReminderEmail(ctx context.Context, toEmail, installerName, taskNo, scheduledDate, timeSlot, address string) error {
	subject := fmt.Sprintf("Reminder: installation %s tomorrow", taskNo)
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Reminder for installation task <strong>%s</strong>.</p><p>Date: %s<br>Time: %s<br>Address: %s</p>`,
		installerName, taskNo, orDash(scheduledDate), orDash(timeSlot), orDash(address),
	)
	return s.send(ctx, toEmail, subject, body)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
