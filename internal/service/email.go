package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// Sender delivers a composed message. The production implementation speaks
// SMTP; tests substitute a recorder.
type Sender interface {
	Send(to, subject, body string) error
}

// EmailService writes outbox entries and attempts delivery. Delivery is
// best effort: a failed send leaves the row in draft and does not fail the
// operation.
type EmailService struct {
	store  store.Store
	sender Sender
	logger *slog.Logger
}

// NewEmailService creates a new email service. sender may be nil, in which
// case entries are stored without a delivery attempt.
func NewEmailService(st store.Store, sender Sender, logger *slog.Logger) *EmailService {
	return &EmailService{store: st, sender: sender, logger: logger}
}

// SendEmailRequest composes a message to a registered user, an external
// address, or both.
type SendEmailRequest struct {
	RecipientUserID string `json:"recipient_user_id" validate:"omitempty"`
	RecipientEmail  string `json:"recipient_email" validate:"omitempty,email"`
	Subject         string `json:"subject" validate:"required,max=256"`
	Body            string `json:"body" validate:"required"`
}

// Send stores the message and attempts delivery when an address is known.
func (s *EmailService) Send(ctx context.Context, senderID string, req SendEmailRequest) (*domain.Email, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.RecipientUserID == "" && req.RecipientEmail == "" {
		return nil, domainerrors.Validation("必须指定收件人")
	}

	address := req.RecipientEmail
	if req.RecipientUserID != "" {
		recipient, err := s.store.GetUser(ctx, req.RecipientUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.NotFound("收件用户不存在")
			}
			return nil, domainerrors.Storage(err, "lookup recipient")
		}
		if address == "" {
			address = recipient.Email
		}
	}

	emailID, err := id.Generate("email")
	if err != nil {
		return nil, fmt.Errorf("generate email id: %w", err)
	}

	email := &domain.Email{
		ID:              emailID,
		SenderID:        senderID,
		RecipientUserID: req.RecipientUserID,
		RecipientEmail:  address,
		Subject:         req.Subject,
		Body:            req.Body,
		Status:          domain.EmailStatusDraft,
		CreatedAt:       time.Now(),
	}

	if err := s.store.CreateEmail(ctx, email); err != nil {
		return nil, domainerrors.Storage(err, "create email")
	}

	if s.sender != nil && address != "" {
		if err := s.sender.Send(address, req.Subject, req.Body); err != nil {
			s.logger.Warn("email delivery failed", "email_id", email.ID, "error", err)
			return email, nil
		}
		sentAt := time.Now()
		if err := s.store.MarkEmailSent(ctx, email.ID, sentAt); err != nil {
			s.logger.Warn("mark email sent failed", "email_id", email.ID, "error", err)
			return email, nil
		}
		email.Status = domain.EmailStatusSent
		email.SentAt = &sentAt
	}

	return email, nil
}

// MyEmails returns the messages addressed to the user, newest first.
func (s *EmailService) MyEmails(ctx context.Context, userID string) ([]*domain.Email, error) {
	emails, err := s.store.ListEmailsForUser(ctx, userID)
	if err != nil {
		return nil, domainerrors.Storage(err, "list emails")
	}
	return emails, nil
}

// AllEmails returns every outbox entry. Admin only; enforced by the handler.
func (s *EmailService) AllEmails(ctx context.Context) ([]*domain.Email, error) {
	emails, err := s.store.ListAllEmails(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "list emails")
	}
	return emails, nil
}

// SMTPSender delivers mail through a plain-auth SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates an SMTP sender from config. Returns nil when no
// host is configured, which disables delivery.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message.
func (s *SMTPSender) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}
