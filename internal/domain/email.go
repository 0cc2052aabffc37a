package domain

import "time"

// EmailStatus represents the delivery state of an outbox entry.
type EmailStatus string

const (
	// EmailStatusDraft is the initial state; the row is stored whether or
	// not delivery was attempted.
	EmailStatusDraft EmailStatus = "draft"
	// EmailStatusSent is set once an SMTP delivery succeeded.
	EmailStatusSent EmailStatus = "sent"
)

// Email is an outbox entry written by an admin. Delivery is best effort:
// a failed send leaves the row in draft.
type Email struct {
	ID              string      `json:"id"`
	SenderID        string      `json:"sender_id"`
	RecipientUserID string      `json:"recipient_user_id,omitempty"`
	RecipientEmail  string      `json:"recipient_email,omitempty"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	Status          EmailStatus `json:"status"`
	SentAt          *time.Time  `json:"sent_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
