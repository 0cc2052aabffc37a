package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

func makeLoanRecord(loanID, userID, bookID string) *domain.BorrowRecord {
	now := time.Now()
	return &domain.BorrowRecord{
		ID:         loanID,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, domain.DefaultLoanDays),
	}
}

func TestBorrowBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 2)

	record := makeLoanRecord("loan-1", "user-1", "book-1")
	if err := s.BorrowBook(ctx, record); err != nil {
		t.Fatalf("BorrowBook: %v", err)
	}

	got, err := s.GetLoan(ctx, "loan-1")
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if got.Status != domain.LoanStatusBorrowed {
		t.Errorf("Status: got %q, want borrowed", got.Status)
	}
	if got.ReturnDate != nil {
		t.Errorf("ReturnDate: got %v, want nil", got.ReturnDate)
	}
	if got.FineAmount != 0 {
		t.Errorf("FineAmount: got %v, want 0", got.FineAmount)
	}

	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)
	assertLedger(t, s, "book-1")
}

func TestBorrowBook_LastCopyFlipsStatus(t *testing.T) {
	// Scenario: a single-copy book goes unavailable on borrow and a
	// second borrow by another user is rejected.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "甲", domain.RoleUser)
	seedUser(t, s, "user-2", "乙", domain.RoleUser)
	seedBook(t, s, "book-1", "孤本", 1)

	if err := s.BorrowBook(ctx, makeLoanRecord("loan-1", "user-1", "book-1")); err != nil {
		t.Fatalf("BorrowBook: %v", err)
	}
	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)

	err := s.BorrowBook(ctx, makeLoanRecord("loan-2", "user-2", "book-1"))
	if domainerrors.CodeOf(err) != domainerrors.CodeNoCopiesAvailable {
		t.Fatalf("expected NO_COPIES_AVAILABLE, got %v", err)
	}
	if err.Error() != "该图书暂无可借副本" {
		t.Errorf("message: got %q", err.Error())
	}

	// The failed borrow must not have created a record.
	if _, err := s.GetLoan(ctx, "loan-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rejected borrow left a record: %v", err)
	}
	assertLedger(t, s, "book-1")
}

func TestBorrowBook_MissingBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleUser)

	// A missing title reads the same as an exhausted one.
	err := s.BorrowBook(ctx, makeLoanRecord("loan-1", "user-1", "nonexistent"))
	if domainerrors.CodeOf(err) != domainerrors.CodeNoCopiesAvailable {
		t.Fatalf("expected NO_COPIES_AVAILABLE, got %v", err)
	}
	if err.Error() != "该图书暂无可借副本" {
		t.Errorf("message: got %q", err.Error())
	}
}

func TestBorrowBook_MissingUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "三体", 1)

	err := s.BorrowBook(ctx, makeLoanRecord("loan-1", "nonexistent", "book-1"))
	if domainerrors.CodeOf(err) != domainerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if err.Error() != "用户不存在" {
		t.Errorf("message: got %q", err.Error())
	}

	// Availability is untouched.
	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)
}

func TestBorrowBook_MaintenanceBlocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "修复中", 2)

	status := domain.BookStatusMaintenance
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	err := s.BorrowBook(ctx, makeLoanRecord("loan-1", "user-1", "book-1"))
	if domainerrors.CodeOf(err) != domainerrors.CodeNoCopiesAvailable {
		t.Fatalf("expected NO_COPIES_AVAILABLE, got %v", err)
	}
}

func TestBorrowBook_UserQuota(t *testing.T) {
	// A user-role account is denied its 3rd concurrent loan.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleUser)
	for i := 1; i <= 3; i++ {
		seedBook(t, s, fmt.Sprintf("book-%d", i), fmt.Sprintf("书%d", i), 1)
	}

	seedLoan(t, s, "loan-1", "user-1", "book-1")
	seedLoan(t, s, "loan-2", "user-1", "book-2")

	err := s.BorrowBook(ctx, makeLoanRecord("loan-3", "user-1", "book-3"))
	if domainerrors.CodeOf(err) != domainerrors.CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
	want := "普通用户最多可借阅2本，您当前已借阅2本，无法继续借阅"
	if err.Error() != want {
		t.Errorf("message: got %q, want %q", err.Error(), want)
	}

	// Returning one frees the slot.
	if _, err := s.ReturnLoan(ctx, "loan-1", time.Now()); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	if err := s.BorrowBook(ctx, makeLoanRecord("loan-3", "user-1", "book-3")); err != nil {
		t.Fatalf("borrow after return: %v", err)
	}
}

func TestBorrowBook_MemberQuota(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "member", domain.RoleMember)
	for i := 1; i <= 6; i++ {
		seedBook(t, s, fmt.Sprintf("book-%d", i), fmt.Sprintf("书%d", i), 1)
	}
	for i := 1; i <= 5; i++ {
		seedLoan(t, s, fmt.Sprintf("loan-%d", i), "user-1", fmt.Sprintf("book-%d", i))
	}

	err := s.BorrowBook(ctx, makeLoanRecord("loan-6", "user-1", "book-6"))
	if domainerrors.CodeOf(err) != domainerrors.CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
	want := "会员用户最多可借阅5本，您当前已借阅5本，无法继续借阅"
	if err.Error() != want {
		t.Errorf("message: got %q, want %q", err.Error(), want)
	}
}

func TestBorrowBook_ConcurrentLastCopy(t *testing.T) {
	// Two concurrent borrows of a single-copy book must produce exactly
	// one success.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "甲", domain.RoleUser)
	seedUser(t, s, "user-2", "乙", domain.RoleUser)
	seedBook(t, s, "book-1", "孤本", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := makeLoanRecord(fmt.Sprintf("loan-%d", i+1), fmt.Sprintf("user-%d", i+1), "book-1")
			errs[i] = s.BorrowBook(ctx, record)
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if domainerrors.CodeOf(err) == domainerrors.CodeNoCopiesAvailable {
			failed++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("got %d successes and %d rejections, want 1 and 1", ok, failed)
	}

	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)
	assertLedger(t, s, "book-1")
}

func TestReturnLoan_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")
	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)

	returned, err := s.ReturnLoan(ctx, record.ID, record.BorrowDate.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	if returned.Status != domain.LoanStatusReturned {
		t.Errorf("Status: got %q, want returned", returned.Status)
	}
	if returned.ReturnDate == nil {
		t.Error("ReturnDate: expected set")
	}

	// Borrow then return restores the pre-borrow state.
	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)
	assertLedger(t, s, "book-1")
}

func TestReturnLoan_MaintenancePreserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "修复中", 2)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")

	status := domain.BookStatusMaintenance
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	if _, err := s.ReturnLoan(ctx, record.ID, time.Now()); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}

	// The copy comes back but maintenance is not cleared.
	assertBookState(t, s, "book-1", 2, domain.BookStatusMaintenance)
}

func TestReturnLoan_Double(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")

	if _, err := s.ReturnLoan(ctx, record.ID, time.Now()); err != nil {
		t.Fatalf("first ReturnLoan: %v", err)
	}

	_, err := s.ReturnLoan(ctx, record.ID, time.Now())
	if domainerrors.CodeOf(err) != domainerrors.CodeAlreadyReturned {
		t.Fatalf("expected ALREADY_RETURNED, got %v", err)
	}

	// The double return must not inflate availability.
	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)
	assertLedger(t, s, "book-1")
}

func TestReturnLoan_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReturnLoan(context.Background(), "nonexistent", time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestAdminUpdateLoan_MarkReturnedReleasesCopy(t *testing.T) {
	// Scenario: editing a borrowed record to returned on a zero-available
	// book frees the copy.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "孤本", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")
	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)

	status := domain.LoanStatusReturned
	updated, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &status})
	if err != nil {
		t.Fatalf("AdminUpdateLoan: %v", err)
	}
	if updated.Status != domain.LoanStatusReturned {
		t.Errorf("Status: got %q", updated.Status)
	}

	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)
	assertLedger(t, s, "book-1")
}

func TestAdminUpdateLoan_UnReturnTakesCopyBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "孤本", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")
	if _, err := s.ReturnLoan(ctx, record.ID, time.Now()); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)

	status := domain.LoanStatusBorrowed
	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &status}); err != nil {
		t.Fatalf("AdminUpdateLoan: %v", err)
	}

	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)
	assertLedger(t, s, "book-1")
}

func TestAdminUpdateLoan_RepeatedReturnedEditNoDoubleRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "孤本", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")

	status := domain.LoanStatusReturned
	fine := 5.0
	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &status}); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	// A second edit that keeps the status at returned only changes the
	// fine; no copy moves.
	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &status, FineAmount: &fine}); err != nil {
		t.Fatalf("second edit: %v", err)
	}

	assertBookState(t, s, "book-1", 1, domain.BookStatusAvailable)

	got, err := s.GetLoan(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if got.FineAmount != 5.0 {
		t.Errorf("FineAmount: got %v, want 5", got.FineAmount)
	}
}

func TestAdminUpdateLoan_DueDateOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")

	due := record.DueDate.AddDate(0, 0, 14)
	updated, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{DueDate: &due})
	if err != nil {
		t.Fatalf("AdminUpdateLoan: %v", err)
	}
	if !updated.DueDate.Equal(due) && updated.DueDate.Format("2006-01-02") != due.Format("2006-01-02") {
		t.Errorf("DueDate: got %v, want %v", updated.DueDate, due)
	}

	// Status unchanged, no copy moved.
	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)
}

func TestAdminUpdateLoan_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 1)
	record := seedLoan(t, s, "loan-1", "user-1", "book-1")

	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{}); domainerrors.CodeOf(err) != domainerrors.CodeValidation {
		t.Errorf("empty patch: expected VALIDATION, got %v", err)
	}

	bad := domain.LoanStatus("lost")
	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{Status: &bad}); domainerrors.CodeOf(err) != domainerrors.CodeValidation {
		t.Errorf("bad status: expected VALIDATION, got %v", err)
	}

	fine := -1.0
	if _, err := s.AdminUpdateLoan(ctx, record.ID, domain.LoanPatch{FineAmount: &fine}); domainerrors.CodeOf(err) != domainerrors.CodeValidation {
		t.Errorf("negative fine: expected VALIDATION, got %v", err)
	}
}

func TestAdminUpdateLoan_NotFound(t *testing.T) {
	s := newTestStore(t)

	fine := 1.0
	_, err := s.AdminUpdateLoan(context.Background(), "nonexistent", domain.LoanPatch{FineAmount: &fine})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestListLoansByUser_OverdueClassification(t *testing.T) {
	// Scenario: an active loan past its due date is reported overdue at
	// read time while the stored status stays borrowed.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 1)

	now := time.Now()
	record := &domain.BorrowRecord{
		ID:         "loan-1",
		UserID:     "user-1",
		BookID:     "book-1",
		BorrowDate: now.AddDate(0, 0, -10),
		DueDate:    now.AddDate(0, 0, -1), // yesterday
	}
	if err := s.BorrowBook(ctx, record); err != nil {
		t.Fatalf("BorrowBook: %v", err)
	}

	views, err := s.ListLoansByUser(ctx, "user-1", "", now)
	if err != nil {
		t.Fatalf("ListLoansByUser: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 loan, got %d", len(views))
	}
	v := views[0]
	if !v.Overdue {
		t.Error("expected overdue classification")
	}
	if v.Status != domain.LoanStatusBorrowed {
		t.Errorf("stored status mutated: got %q, want borrowed", v.Status)
	}
	if v.BookTitle != "三体" {
		t.Errorf("BookTitle: got %q", v.BookTitle)
	}

	// The classification never writes back.
	got, err := s.GetLoan(ctx, "loan-1")
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if got.Status != domain.LoanStatusBorrowed {
		t.Errorf("persisted status: got %q, want borrowed", got.Status)
	}
}

func TestListAllLoans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "甲", domain.RoleMember)
	seedUser(t, s, "user-2", "乙", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 2)
	seedLoan(t, s, "loan-1", "user-1", "book-1")
	seedLoan(t, s, "loan-2", "user-2", "book-1")

	views, err := s.ListAllLoans(ctx, "", time.Now())
	if err != nil {
		t.Fatalf("ListAllLoans: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 loans, got %d", len(views))
	}
	for _, v := range views {
		if v.Username == "" || v.UserName == "" {
			t.Errorf("loan %s missing joined user fields", v.ID)
		}
	}
}

func TestListLoans_StatusFilter(t *testing.T) {
	// One active and one returned loan per user; a status filter must
	// match the stored status exactly, and an empty filter returns all.
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "甲", domain.RoleMember)
	seedUser(t, s, "user-2", "乙", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 4)
	seedLoan(t, s, "loan-1", "user-1", "book-1")
	seedLoan(t, s, "loan-2", "user-1", "book-1")
	seedLoan(t, s, "loan-3", "user-2", "book-1")

	if _, err := s.ReturnLoan(ctx, "loan-2", time.Now()); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}

	now := time.Now()

	views, err := s.ListLoansByUser(ctx, "user-1", domain.LoanStatusBorrowed, now)
	if err != nil {
		t.Fatalf("ListLoansByUser(borrowed): %v", err)
	}
	if len(views) != 1 || views[0].ID != "loan-1" {
		t.Fatalf("borrowed filter: got %d views, want just loan-1", len(views))
	}

	views, err = s.ListLoansByUser(ctx, "user-1", domain.LoanStatusReturned, now)
	if err != nil {
		t.Fatalf("ListLoansByUser(returned): %v", err)
	}
	if len(views) != 1 || views[0].ID != "loan-2" {
		t.Fatalf("returned filter: got %d views, want just loan-2", len(views))
	}

	views, err = s.ListLoansByUser(ctx, "user-1", "", now)
	if err != nil {
		t.Fatalf("ListLoansByUser(all): %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("empty filter: got %d views, want 2", len(views))
	}

	views, err = s.ListAllLoans(ctx, domain.LoanStatusBorrowed, now)
	if err != nil {
		t.Fatalf("ListAllLoans(borrowed): %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("all-loans borrowed filter: got %d views, want 2", len(views))
	}

	// An unknown status matches no stored rows.
	views, err = s.ListAllLoans(ctx, domain.LoanStatus("pending"), now)
	if err != nil {
		t.Fatalf("ListAllLoans(pending): %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("unknown status: got %d views, want 0", len(views))
	}
}

func TestCountActiveLoans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "三体", 3)

	seedLoan(t, s, "loan-1", "user-1", "book-1")
	seedLoan(t, s, "loan-2", "user-1", "book-1")
	if _, err := s.ReturnLoan(ctx, "loan-2", time.Now()); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}

	n, err := s.CountActiveLoans(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountActiveLoans: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d active loans, want 1", n)
	}
}
