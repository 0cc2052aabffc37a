package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, isbn, category, publisher, publish_date,
	total_copies, available_copies, status, created_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		status    string
		createdAt string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.ISBN,
		&b.Category,
		&b.Publisher,
		&b.PublishDate,
		&b.TotalCopies,
		&b.AvailableCopies,
		&status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BookStatus(status)

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new title. AvailableCopies is initialized to
// TotalCopies and the status is derived from the copy count.
// Returns store.ErrAlreadyExists on a duplicate ISBN.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if book.TotalCopies < 0 {
		return domainerrors.Validation("副本数量不能为负数")
	}

	book.AvailableCopies = book.TotalCopies
	if book.TotalCopies > 0 {
		book.Status = domain.BookStatusAvailable
	} else {
		book.Status = domain.BookStatusUnavailable
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, isbn, category, publisher, publish_date,
			total_copies, available_copies, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.ISBN,
		book.Category,
		book.Publisher,
		book.PublishDate,
		book.TotalCopies,
		book.AvailableCopies,
		string(book.Status),
		formatTime(book.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetBook retrieves a book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookByISBN retrieves a book by ISBN. Used by the importer for
// deduplication. Returns store.ErrNotFound if no book carries the ISBN.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn = ? AND isbn != ''`, isbn)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SearchBooks returns books matching the keyword (substring over title,
// author and ISBN) and the exact category. Empty arguments match all rows.
// Results are newest first.
func (s *Store) SearchBooks(ctx context.Context, keyword, category string) ([]*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE 1=1`
	var args []any

	keyword = strings.TrimSpace(keyword)
	category = strings.TrimSpace(category)

	if keyword != "" {
		query += ` AND (title LIKE ? OR author LIKE ? OR isbn LIKE ?)`
		pattern := "%" + keyword + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// ListCategories returns the distinct non-empty categories in the catalog.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM books WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// UpdateBook applies a partial update to a book inside one transaction.
//
// Lowering total_copies below available_copies clamps available_copies down
// to the new total; outstanding loans are not recalled, the free copies
// simply disappear. After the field updates the status is resynced from the
// clamped availability, except that an explicitly requested (or already
// pinned) maintenance status wins.
func (s *Store) UpdateBook(ctx context.Context, id string, patch domain.BookPatch) error {
	if patch.IsZero() {
		return domainerrors.Validation("no fields to update")
	}
	if patch.TotalCopies != nil && *patch.TotalCopies < 0 {
		return domainerrors.Validation("副本数量不能为负数")
	}
	if patch.Status != nil && !domain.ValidBookStatus(*patch.Status) {
		return domainerrors.Validationf("无效的图书状态: %s", *patch.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Author != nil {
		b.Author = *patch.Author
	}
	if patch.ISBN != nil {
		b.ISBN = *patch.ISBN
	}
	if patch.Category != nil {
		b.Category = *patch.Category
	}
	if patch.Publisher != nil {
		b.Publisher = *patch.Publisher
	}
	if patch.PublishDate != nil {
		b.PublishDate = *patch.PublishDate
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.TotalCopies != nil {
		b.TotalCopies = *patch.TotalCopies
		if b.AvailableCopies > b.TotalCopies {
			b.AvailableCopies = b.TotalCopies
		}
	}

	b.Status = domain.DeriveBookStatus(b.AvailableCopies, b.Status)

	result, err := tx.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, isbn = ?, category = ?, publisher = ?,
			publish_date = ?, total_copies = ?, available_copies = ?, status = ?
		WHERE id = ?`,
		b.Title, b.Author, b.ISBN, b.Category, b.Publisher,
		b.PublishDate, b.TotalCopies, b.AvailableCopies, string(b.Status),
		id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// DeleteBook removes a title unconditionally. Loan history rows are removed
// by the FK cascade.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
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
