// Package store defines the persistence interface for the Shelfwise server.
package store

import (
	"context"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// Store defines the interface for all persistence operations.
//
// The circulation operations (BorrowBook, ReturnLoan, AdminUpdateLoan,
// DeleteUser, UpdateBook) are atomic: each runs its checks and its writes in
// one transaction, so the inventory invariants hold under concurrent
// callers.
type Store interface {
	// Lifecycle
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountAdmins(ctx context.Context) (int, error)
	UpdateUser(ctx context.Context, id string, patch domain.UserPatch) error
	DeleteUser(ctx context.Context, id string) error

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	SearchBooks(ctx context.Context, keyword, category string) ([]*domain.Book, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpdateBook(ctx context.Context, id string, patch domain.BookPatch) error
	DeleteBook(ctx context.Context, id string) error

	// Circulation
	BorrowBook(ctx context.Context, record *domain.BorrowRecord) error
	ReturnLoan(ctx context.Context, loanID string, returnDate time.Time) (*domain.BorrowRecord, error)
	AdminUpdateLoan(ctx context.Context, loanID string, patch domain.LoanPatch) (*domain.BorrowRecord, error)
	GetLoan(ctx context.Context, id string) (*domain.BorrowRecord, error)
	DeleteLoan(ctx context.Context, id string) error
	CountActiveLoans(ctx context.Context, userID string) (int, error)
	ListLoansByUser(ctx context.Context, userID string, status domain.LoanStatus, today time.Time) ([]*domain.LoanView, error)
	ListAllLoans(ctx context.Context, status domain.LoanStatus, today time.Time) ([]*domain.LoanView, error)

	// Statistics
	BorrowStats(ctx context.Context, today time.Time) (*domain.BorrowStats, error)
	CategorySummary(ctx context.Context) ([]domain.CategorySummary, error)
	BookStatusCounts(ctx context.Context) ([]domain.StatusCount, error)
	LoanStatusCounts(ctx context.Context) ([]domain.StatusCount, error)
	BorrowReturnTrend(ctx context.Context, today time.Time, days int) ([]domain.TrendPoint, error)
	BorrowDurations(ctx context.Context) ([]int, error)
	OverdueDays(ctx context.Context) ([]int, error)
	RoleCounts(ctx context.Context) ([]domain.RoleCount, error)
	AgeDistribution(ctx context.Context) ([]domain.AgeBucket, error)
	RegistrationTrend(ctx context.Context, today time.Time, months int) ([]domain.MonthCount, error)
	TopBorrowers(ctx context.Context, limit int) ([]domain.TopBorrower, error)

	// Emails
	CreateEmail(ctx context.Context, email *domain.Email) error
	MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error
	ListEmailsForUser(ctx context.Context, userID string) ([]*domain.Email, error)
	ListAllEmails(ctx context.Context) ([]*domain.Email, error)
}
