package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
)

func TestCirculationService_BorrowDefaultsDueDate(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	seedUser(t, st, "user-1", "reader", domain.RoleMember)
	seedBook(t, st, "book-1", "三体", 2)

	record, err := svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-1"})
	require.NoError(t, err)

	assert.Equal(t, fixed.AddDate(0, 0, domain.DefaultLoanDays).Format("2006-01-02"),
		record.DueDate.Format("2006-01-02"))
	assert.Equal(t, domain.LoanStatusBorrowed, record.Status)

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 1, book.AvailableCopies)
}

func TestCirculationService_BorrowCustomDays(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	seedUser(t, st, "user-1", "reader", domain.RoleMember)
	seedBook(t, st, "book-1", "三体", 1)

	record, err := svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-1", Days: 7})
	require.NoError(t, err)
	assert.Equal(t, record.BorrowDate.AddDate(0, 0, 7).Format("2006-01-02"),
		record.DueDate.Format("2006-01-02"))
}

func TestCirculationService_BorrowErrors(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	seedUser(t, st, "user-1", "reader", domain.RoleUser)
	seedBook(t, st, "book-1", "孤本", 1)
	seedBook(t, st, "book-2", "书二", 1)
	seedBook(t, st, "book-3", "书三", 1)

	_, err := svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "missing"})
	assert.Equal(t, domainerrors.CodeNoCopiesAvailable, domainerrors.CodeOf(err))

	_, err = svc.Borrow(ctx, BorrowRequest{UserID: "ghost", BookID: "book-1"})
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
	assert.Equal(t, "用户不存在", err.Error())

	_, err = svc.Borrow(ctx, BorrowRequest{})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	// The user-role quota stops the third loan.
	_, err = svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-1"})
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-2"})
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-3"})
	assert.Equal(t, domainerrors.CodeQuotaExceeded, domainerrors.CodeOf(err))
	assert.Equal(t, "普通用户最多可借阅2本，您当前已借阅2本，无法继续借阅", err.Error())
}

func TestCirculationService_ReturnOwnership(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	owner := seedUser(t, st, "user-1", "owner", domain.RoleMember)
	other := seedUser(t, st, "user-2", "other", domain.RoleMember)
	admin := seedUser(t, st, "user-3", "boss", domain.RoleAdmin)
	seedBook(t, st, "book-1", "三体", 3)

	record, err := svc.Borrow(ctx, BorrowRequest{UserID: owner.ID, BookID: "book-1"})
	require.NoError(t, err)

	// A different non-admin user cannot return it.
	_, err = svc.Return(ctx, other, record.ID)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	// The owner can.
	returned, err := svc.Return(ctx, owner, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusReturned, returned.Status)

	// A second return fails.
	_, err = svc.Return(ctx, owner, record.ID)
	assert.Equal(t, domainerrors.CodeAlreadyReturned, domainerrors.CodeOf(err))

	// Admins can return anyone's loan.
	record2, err := svc.Borrow(ctx, BorrowRequest{UserID: owner.ID, BookID: "book-1"})
	require.NoError(t, err)
	_, err = svc.Return(ctx, admin, record2.ID)
	require.NoError(t, err)
}

func TestCirculationService_ReturnNotFound(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())

	admin := seedUser(t, st, "user-1", "boss", domain.RoleAdmin)

	_, err := svc.Return(context.Background(), admin, "missing")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestCirculationService_AdminUpdateLoan(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	seedUser(t, st, "user-1", "reader", domain.RoleMember)
	seedBook(t, st, "book-1", "孤本", 1)

	record, err := svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-1"})
	require.NoError(t, err)

	status := domain.LoanStatusReturned
	updated, err := svc.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusReturned, updated.Status)

	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 1, book.AvailableCopies)
	assert.Equal(t, domain.BookStatusAvailable, book.Status)
}

func TestCirculationService_MyLoansOverdue(t *testing.T) {
	st := newTestStore(t)
	svc := NewCirculationService(st, testLogger())
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	seedUser(t, st, "user-1", "reader", domain.RoleMember)
	seedBook(t, st, "book-1", "三体", 1)

	record, err := svc.Borrow(ctx, BorrowRequest{UserID: "user-1", BookID: "book-1", Days: 7})
	require.NoError(t, err)

	// Within the loan period: not overdue.
	views, err := svc.MyLoans(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Overdue)

	// Past the due date the same record classifies overdue, with the
	// stored status untouched.
	svc.now = func() time.Time { return start.AddDate(0, 0, 10) }
	views, err = svc.MyLoans(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Overdue)
	assert.Equal(t, domain.LoanStatusBorrowed, views[0].Status)

	stored, err := st.GetLoan(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusBorrowed, stored.Status)
}
