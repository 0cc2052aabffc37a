package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

const emailColumns = `id, sender_id, recipient_user_id, recipient_email, subject, body, status, sent_at, created_at`

func scanEmail(scanner interface{ Scan(dest ...any) error }) (*domain.Email, error) {
	var e domain.Email

	var (
		recipientUserID sql.NullString
		status          string
		sentAt          sql.NullString
		createdAt       string
	)

	err := scanner.Scan(
		&e.ID,
		&e.SenderID,
		&recipientUserID,
		&e.RecipientEmail,
		&e.Subject,
		&e.Body,
		&status,
		&sentAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.RecipientUserID = recipientUserID.String
	e.Status = domain.EmailStatus(status)

	if sentAt.Valid {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return nil, err
		}
		e.SentAt = &t
	}

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// CreateEmail stores an outbox entry.
func (s *Store) CreateEmail(ctx context.Context, email *domain.Email) error {
	var sentAt sql.NullString
	if email.SentAt != nil {
		sentAt = sql.NullString{String: formatTime(*email.SentAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (id, sender_id, recipient_user_id, recipient_email, subject, body, status, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		email.ID,
		email.SenderID,
		nullString(email.RecipientUserID),
		email.RecipientEmail,
		email.Subject,
		email.Body,
		string(email.Status),
		sentAt,
		formatTime(email.CreatedAt),
	)
	return err
}

// MarkEmailSent flips an outbox entry to sent and stamps the send time.
// Returns store.ErrNotFound if the entry does not exist.
func (s *Store) MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE emails SET status = 'sent', sent_at = ? WHERE id = ?`,
		formatTime(sentAt), id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListEmailsForUser returns the entries addressed to the user, newest first.
func (s *Store) ListEmailsForUser(ctx context.Context, userID string) ([]*domain.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE recipient_user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEmails(rows)
}

// ListAllEmails returns every outbox entry, newest first. Admin view.
func (s *Store) ListAllEmails(ctx context.Context) ([]*domain.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEmails(rows)
}

func collectEmails(rows *sql.Rows) ([]*domain.Email, error) {
	var emails []*domain.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}
