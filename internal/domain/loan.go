package domain

import "time"

// DefaultLoanDays is the loan period applied when a borrow request does not
// specify one.
const DefaultLoanDays = 30

// LoanStatus represents the stored state of a borrow record.
//
// The canonical circulation paths only ever write borrowed and returned.
// Overdue is a view-time classification (see BorrowRecord.IsOverdue); the
// stored value exists because admins may write it directly through a patch,
// and historical databases contain it.
type LoanStatus string

const (
	// LoanStatusBorrowed marks an active loan.
	LoanStatusBorrowed LoanStatus = "borrowed"
	// LoanStatusReturned marks a completed loan. Terminal except for the
	// admin-only un-return edit.
	LoanStatusReturned LoanStatus = "returned"
	// LoanStatusOverdue is accepted on admin edits for compatibility with
	// the stored enum; nothing in the circulation paths writes it.
	LoanStatusOverdue LoanStatus = "overdue"
)

// ValidLoanStatus reports whether s is a value the borrow_records.status
// column accepts.
func ValidLoanStatus(s LoanStatus) bool {
	return s == LoanStatusBorrowed || s == LoanStatusReturned || s == LoanStatusOverdue
}

// BorrowRecord represents a single loan of one copy of a book.
//
// Invariant: Status == returned iff ReturnDate is set by the canonical
// return path. Admin patches may break the pairing deliberately; the copy
// count side effects still key off the status transition alone.
type BorrowRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     LoanStatus `json:"status"`
	FineAmount float64    `json:"fine_amount"`
}

// IsActive reports whether the loan still holds a copy.
func (r *BorrowRecord) IsActive() bool {
	return r.Status == LoanStatusBorrowed
}

// IsOverdue classifies the loan against the given date. Overdue is computed
// at read time and never persisted by the circulation paths.
func (r *BorrowRecord) IsOverdue(today time.Time) bool {
	return r.Status == LoanStatusBorrowed && r.DueDate.Before(truncateToDay(today))
}

// LoanPatch is an explicit partial update for a borrow record, used by the
// admin edit path. At least one field must be set.
type LoanPatch struct {
	Status     *LoanStatus `json:"status,omitempty"`
	DueDate    *time.Time  `json:"due_date,omitempty"`
	ReturnDate *time.Time  `json:"return_date,omitempty"`
	FineAmount *float64    `json:"fine_amount,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p LoanPatch) IsZero() bool {
	return p.Status == nil && p.DueDate == nil && p.ReturnDate == nil && p.FineAmount == nil
}

// LoanView is a borrow record joined with display fields from the book and
// user rows, as served to clients. Overdue is the view-time classification.
type LoanView struct {
	BorrowRecord
	BookTitle  string `json:"title"`
	BookAuthor string `json:"author"`
	BookISBN   string `json:"isbn,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Overdue    bool   `json:"overdue"`
}

// truncateToDay drops the time-of-day component, keeping date comparisons
// stable regardless of when during the day they run.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
