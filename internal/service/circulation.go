package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// CirculationService fronts the borrow/return/edit operations. The
// concurrency-sensitive checks (availability, quota) live inside the store's
// transactions; this layer builds the records, computes dates and maps
// errors.
type CirculationService struct {
	store  store.Store
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewCirculationService creates a new circulation service.
func NewCirculationService(st store.Store, logger *slog.Logger) *CirculationService {
	return &CirculationService{store: st, logger: logger, now: time.Now}
}

// BorrowRequest asks for a loan of one copy. Days defaults to the standard
// loan period when zero.
type BorrowRequest struct {
	UserID string `json:"user_id" validate:"required"`
	BookID string `json:"book_id" validate:"required"`
	Days   int    `json:"days" validate:"gte=0,lte=365"`
}

// Borrow creates a loan. Availability and quota are checked inside one
// store transaction; the failure reasons come back as domain errors.
func (s *CirculationService) Borrow(ctx context.Context, req BorrowRequest) (*domain.BorrowRecord, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	days := req.Days
	if days == 0 {
		days = domain.DefaultLoanDays
	}

	loanID, err := id.Generate("loan")
	if err != nil {
		return nil, fmt.Errorf("generate loan id: %w", err)
	}

	now := s.now()
	record := &domain.BorrowRecord{
		ID:         loanID,
		UserID:     req.UserID,
		BookID:     req.BookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, days),
	}

	if err := s.store.BorrowBook(ctx, record); err != nil {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			s.logger.Info("borrow rejected",
				"user_id", req.UserID, "book_id", req.BookID, "code", domainErr.Code)
			return nil, err
		}
		return nil, domainerrors.Storage(err, "borrow book")
	}

	s.logger.Info("book borrowed",
		"loan_id", record.ID, "user_id", req.UserID, "book_id", req.BookID,
		"due_date", record.DueDate.Format("2006-01-02"))
	return record, nil
}

// Return completes a loan and releases the copy. callerID limits the
// operation to the loan's owner unless the caller is an admin.
func (s *CirculationService) Return(ctx context.Context, caller *domain.User, loanID string) (*domain.BorrowRecord, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("借阅记录不存在")
		}
		return nil, domainerrors.Storage(err, "get loan")
	}
	if caller != nil && !caller.IsAdmin() && loan.UserID != caller.ID {
		return nil, domainerrors.Forbidden("无权归还他人的借阅记录")
	}

	record, err := s.store.ReturnLoan(ctx, loanID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("借阅记录不存在")
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domainerrors.Storage(err, "return loan")
	}

	s.logger.Info("book returned", "loan_id", loanID, "user_id", record.UserID, "book_id", record.BookID)
	return record, nil
}

// AdminUpdateLoan applies an admin edit to a borrow record. Status flips
// mirror the circulation side effects on the book inside the store
// transaction.
func (s *CirculationService) AdminUpdateLoan(ctx context.Context, loanID string, patch domain.LoanPatch) (*domain.BorrowRecord, error) {
	record, err := s.store.AdminUpdateLoan(ctx, loanID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("借阅记录不存在")
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domainerrors.Storage(err, "update loan")
	}

	s.logger.Info("loan updated", "loan_id", loanID, "status", record.Status)
	return record, nil
}

// MyLoans returns the caller's loans with view-time overdue classification.
// A non-empty status restricts the listing to that stored status.
func (s *CirculationService) MyLoans(ctx context.Context, userID string, status domain.LoanStatus) ([]*domain.LoanView, error) {
	views, err := s.store.ListLoansByUser(ctx, userID, status, s.now())
	if err != nil {
		return nil, domainerrors.Storage(err, "list loans")
	}
	return views, nil
}

// AllLoans returns every loan in the system, optionally restricted to a
// stored status. Admin only; enforced by the handler.
func (s *CirculationService) AllLoans(ctx context.Context, status domain.LoanStatus) ([]*domain.LoanView, error) {
	views, err := s.store.ListAllLoans(ctx, status, s.now())
	if err != nil {
		return nil, domainerrors.Storage(err, "list loans")
	}
	return views, nil
}
