package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

const loanColumns = `id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount`

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.BorrowRecord, error) {
	var r domain.BorrowRecord

	var (
		borrowDate string
		dueDate    string
		returnDate sql.NullString
		status     string
	)

	err := scanner.Scan(
		&r.ID,
		&r.UserID,
		&r.BookID,
		&borrowDate,
		&dueDate,
		&returnDate,
		&status,
		&r.FineAmount,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.LoanStatus(status)

	if r.BorrowDate, err = parseDate(borrowDate); err != nil {
		return nil, err
	}
	if r.DueDate, err = parseDate(dueDate); err != nil {
		return nil, err
	}
	if r.ReturnDate, err = parseNullableDate(returnDate); err != nil {
		return nil, err
	}

	return &r, nil
}

// BorrowBook performs the borrow operation as one transaction: it checks the
// book's availability, the borrower's existence and the borrower's quota,
// then inserts the loan, decrements the copy count and resyncs the book
// status. The record must arrive with ID and dates already set.
//
// The checks run against the row state inside the transaction, so two
// concurrent borrows of a last copy cannot both succeed.
func (s *Store) BorrowBook(ctx context.Context, record *domain.BorrowRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, record.BookID)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		// A missing title reads the same as an exhausted one.
		return domainerrors.NoCopiesAvailable("该图书暂无可借副本")
	}
	if err != nil {
		return err
	}
	if book.AvailableCopies <= 0 || book.Status != domain.BookStatusAvailable {
		return domainerrors.NoCopiesAvailable("该图书暂无可借副本")
	}

	userRow := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, record.UserID)
	user, err := scanUser(userRow)
	if err == sql.ErrNoRows {
		return domainerrors.NotFound("用户不存在")
	}
	if err != nil {
		return err
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE user_id = ? AND status = 'borrowed'`,
		record.UserID).Scan(&active)
	if err != nil {
		return err
	}

	if allowed, reason := domain.CheckQuota(user.Role, active); !allowed {
		return domainerrors.QuotaExceeded(reason)
	}

	record.Status = domain.LoanStatusBorrowed
	record.ReturnDate = nil
	record.FineAmount = 0

	_, err = tx.ExecContext(ctx, `
		INSERT INTO borrow_records (id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount)
		VALUES (?, ?, ?, ?, ?, NULL, ?, 0)`,
		record.ID,
		record.UserID,
		record.BookID,
		formatDate(record.BorrowDate),
		formatDate(record.DueDate),
		string(record.Status),
	)
	if err != nil {
		return err
	}

	book.AvailableCopies--
	book.Status = domain.DeriveBookStatus(book.AvailableCopies, book.Status)

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET available_copies = ?, status = ? WHERE id = ?`,
		book.AvailableCopies, string(book.Status), book.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ReturnLoan completes a loan as one transaction: it flips the record to
// returned, stamps the return date, then increments the book's copy count
// (capped at total_copies) and resyncs its status.
//
// Returning an already returned loan fails without touching the book, which
// keeps a double return from inflating availability.
func (s *Store) ReturnLoan(ctx context.Context, loanID string, returnDate time.Time) (*domain.BorrowRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM borrow_records WHERE id = ?`, loanID)
	record, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if record.Status == domain.LoanStatusReturned {
		return nil, domainerrors.AlreadyReturned("该记录已归还")
	}

	record.Status = domain.LoanStatusReturned
	record.ReturnDate = &returnDate

	_, err = tx.ExecContext(ctx,
		`UPDATE borrow_records SET status = ?, return_date = ? WHERE id = ?`,
		string(record.Status), formatDate(returnDate), loanID)
	if err != nil {
		return nil, err
	}

	if err := adjustBookCopies(ctx, tx, record.BookID, +1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// AdminUpdateLoan applies a partial edit to a borrow record as one
// transaction. When the edit flips the status it mirrors the circulation
// side effects on the book: borrowed -> returned releases a copy,
// returned -> borrowed takes one back again. The copy count stays clamped
// to [0, total_copies] either way, so repeated edits cannot corrupt it.
func (s *Store) AdminUpdateLoan(ctx context.Context, loanID string, patch domain.LoanPatch) (*domain.BorrowRecord, error) {
	if patch.IsZero() {
		return nil, domainerrors.Validation("no fields to update")
	}
	if patch.Status != nil && !domain.ValidLoanStatus(*patch.Status) {
		return nil, domainerrors.Validationf("无效的借阅状态: %s", *patch.Status)
	}
	if patch.FineAmount != nil && *patch.FineAmount < 0 {
		return nil, domainerrors.Validation("罚金不能为负数")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM borrow_records WHERE id = ?`, loanID)
	record, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	prevActive := record.IsActive()

	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.DueDate != nil {
		record.DueDate = *patch.DueDate
	}
	if patch.ReturnDate != nil {
		record.ReturnDate = patch.ReturnDate
	}
	if patch.FineAmount != nil {
		record.FineAmount = *patch.FineAmount
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE borrow_records SET status = ?, due_date = ?, return_date = ?, fine_amount = ?
		WHERE id = ?`,
		string(record.Status),
		formatDate(record.DueDate),
		nullDateString(record.ReturnDate),
		record.FineAmount,
		loanID,
	)
	if err != nil {
		return nil, err
	}

	nowActive := record.IsActive()
	switch {
	case prevActive && !nowActive:
		err = adjustBookCopies(ctx, tx, record.BookID, +1)
	case !prevActive && nowActive:
		err = adjustBookCopies(ctx, tx, record.BookID, -1)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// adjustBookCopies shifts a book's available_copies by delta inside tx,
// clamps the result to [0, total_copies] and resyncs the status. A missing
// book is ignored so loan edits survive a cascade-deleted title.
func adjustBookCopies(ctx context.Context, tx *sql.Tx, bookID string, delta int) error {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	book.AvailableCopies += delta
	if book.AvailableCopies < 0 {
		book.AvailableCopies = 0
	}
	if book.AvailableCopies > book.TotalCopies {
		book.AvailableCopies = book.TotalCopies
	}
	book.Status = domain.DeriveBookStatus(book.AvailableCopies, book.Status)

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET available_copies = ?, status = ? WHERE id = ?`,
		book.AvailableCopies, string(book.Status), book.ID)
	return err
}

// GetLoan retrieves a borrow record by ID.
// Returns store.ErrNotFound if the record does not exist.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.BorrowRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM borrow_records WHERE id = ?`, id)

	record, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteLoan removes a borrow record without touching the book's copy
// counts. Admin edits that should release or reclaim a copy go through
// AdminUpdateLoan instead.
func (s *Store) DeleteLoan(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM borrow_records WHERE id = ?`, id)
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

// CountActiveLoans returns the number of loans the user currently holds.
func (s *Store) CountActiveLoans(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE user_id = ? AND status = 'borrowed'`,
		userID).Scan(&n)
	return n, err
}

const loanViewQuery = `
	SELECT r.id, r.user_id, r.book_id, r.borrow_date, r.due_date, r.return_date,
		r.status, r.fine_amount,
		b.title, b.author, b.isbn, u.name, u.username
	FROM borrow_records r
	JOIN books b ON b.id = r.book_id
	JOIN users u ON u.id = r.user_id`

func scanLoanView(scanner interface{ Scan(dest ...any) error }, today time.Time) (*domain.LoanView, error) {
	var v domain.LoanView

	var (
		borrowDate string
		dueDate    string
		returnDate sql.NullString
		status     string
	)

	err := scanner.Scan(
		&v.ID,
		&v.UserID,
		&v.BookID,
		&borrowDate,
		&dueDate,
		&returnDate,
		&status,
		&v.FineAmount,
		&v.BookTitle,
		&v.BookAuthor,
		&v.BookISBN,
		&v.UserName,
		&v.Username,
	)
	if err != nil {
		return nil, err
	}

	v.Status = domain.LoanStatus(status)

	if v.BorrowDate, err = parseDate(borrowDate); err != nil {
		return nil, err
	}
	if v.DueDate, err = parseDate(dueDate); err != nil {
		return nil, err
	}
	if v.ReturnDate, err = parseNullableDate(returnDate); err != nil {
		return nil, err
	}

	v.Overdue = v.IsOverdue(today)
	return &v, nil
}

// ListLoansByUser returns the user's loans, newest first, classified
// against today. A non-empty status narrows to that stored status.
func (s *Store) ListLoansByUser(ctx context.Context, userID string, status domain.LoanStatus, today time.Time) ([]*domain.LoanView, error) {
	query := loanViewQuery + ` WHERE r.user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND r.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY r.borrow_date DESC, r.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLoanViews(rows, today)
}

// ListAllLoans returns every loan in the system, newest first, classified
// against today. Admin view. A non-empty status narrows to that stored
// status.
func (s *Store) ListAllLoans(ctx context.Context, status domain.LoanStatus, today time.Time) ([]*domain.LoanView, error) {
	query := loanViewQuery
	var args []any
	if status != "" {
		query += ` WHERE r.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY r.borrow_date DESC, r.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLoanViews(rows, today)
}

func collectLoanViews(rows *sql.Rows, today time.Time) ([]*domain.LoanView, error) {
	var views []*domain.LoanView
	for rows.Next() {
		v, err := scanLoanView(rows, today)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}
