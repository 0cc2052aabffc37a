package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "三体", 3)
	book.Author = "刘慈欣"
	book.ISBN = "9787536692930"
	book.Category = "科普类"
	book.Publisher = "重庆出版社"
	book.PublishDate = "2008-01-01"

	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}

	if got.Title != "三体" {
		t.Errorf("Title: got %q", got.Title)
	}
	if got.Author != "刘慈欣" {
		t.Errorf("Author: got %q", got.Author)
	}
	if got.ISBN != "9787536692930" {
		t.Errorf("ISBN: got %q", got.ISBN)
	}
	if got.TotalCopies != 3 {
		t.Errorf("TotalCopies: got %d, want 3", got.TotalCopies)
	}
	// Available copies start equal to total.
	if got.AvailableCopies != 3 {
		t.Errorf("AvailableCopies: got %d, want 3", got.AvailableCopies)
	}
	if got.Status != domain.BookStatusAvailable {
		t.Errorf("Status: got %q, want available", got.Status)
	}
}

func TestCreateBook_ZeroCopies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "绝版书", 0)
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)
}

func TestCreateBook_NegativeCopies(t *testing.T) {
	s := newTestStore(t)

	book := makeTestBook("book-1", "bad", -1)
	err := s.CreateBook(context.Background(), book)
	if domainerrors.CodeOf(err) != domainerrors.CodeValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestCreateBook_DuplicateISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := makeTestBook("book-1", "第一本", 1)
	first.ISBN = "9780000000001"
	if err := s.CreateBook(ctx, first); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	second := makeTestBook("book-2", "第二本", 1)
	second.ISBN = "9780000000001"
	err := s.CreateBook(ctx, second)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected store.ErrAlreadyExists, got %v", err)
	}
}

func TestCreateBook_EmptyISBNNotUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The partial unique index only covers non-empty ISBNs.
	if err := s.CreateBook(ctx, makeTestBook("book-1", "无ISBN甲", 1)); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.CreateBook(ctx, makeTestBook("book-2", "无ISBN乙", 1)); err != nil {
		t.Fatalf("CreateBook second empty ISBN: %v", err)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestGetBookByISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "三体", 1)
	book.ISBN = "9787536692930"
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBookByISBN(ctx, "9787536692930")
	if err != nil {
		t.Fatalf("GetBookByISBN: %v", err)
	}
	if got.ID != "book-1" {
		t.Errorf("ID: got %q", got.ID)
	}

	_, err = s.GetBookByISBN(ctx, "9999999999999")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}

	// An empty ISBN never matches.
	_, err = s.GetBookByISBN(ctx, "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound for empty isbn, got %v", err)
	}
}

func TestSearchBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := makeTestBook("book-1", "三体", 1)
	b1.Author = "刘慈欣"
	b1.Category = "科普类"
	b2 := makeTestBook("book-2", "活着", 1)
	b2.Author = "余华"
	b2.Category = "文学类"
	b3 := makeTestBook("book-3", "三国演义", 1)
	b3.Author = "罗贯中"
	b3.Category = "文学类"

	for _, b := range []*domain.Book{b1, b2, b3} {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatalf("CreateBook(%s): %v", b.ID, err)
		}
	}

	tests := []struct {
		name     string
		keyword  string
		category string
		want     int
	}{
		{"all", "", "", 3},
		{"title substring", "三", "", 2},
		{"author", "余华", "", 1},
		{"category", "", "文学类", 2},
		{"keyword and category", "三", "文学类", 1},
		{"no match", "百年孤独", "", 0},
		{"whitespace keyword matches all", "  ", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchBooks(ctx, tt.keyword, tt.category)
			if err != nil {
				t.Fatalf("SearchBooks: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d books, want %d", len(got), tt.want)
			}
		})
	}
}

func TestListCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := makeTestBook("book-1", "a", 1)
	b1.Category = "科普类"
	b2 := makeTestBook("book-2", "b", 1)
	b2.Category = "文学类"
	b3 := makeTestBook("book-3", "c", 1)
	b3.Category = "" // uncategorized, excluded
	b4 := makeTestBook("book-4", "d", 1)
	b4.Category = "科普类"

	for _, b := range []*domain.Book{b1, b2, b3, b4} {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatalf("CreateBook(%s): %v", b.ID, err)
		}
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %v, want 2 distinct categories", cats)
	}
}

func TestUpdateBook_Fields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "旧标题", 2)

	title := "新标题"
	author := "新作者"
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Title: &title, Author: &author}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "新标题" || got.Author != "新作者" {
		t.Errorf("got %q / %q", got.Title, got.Author)
	}
	if got.TotalCopies != 2 || got.AvailableCopies != 2 {
		t.Errorf("copies changed: total=%d available=%d", got.TotalCopies, got.AvailableCopies)
	}
}

func TestUpdateBook_RaiseTotalCopies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "热门书", 1)
	seedLoan(t, s, "loan-1", "user-1", "book-1")
	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)

	// Raising the total frees no copies by itself; availability stays at
	// total minus active loans only after the status resync runs against
	// the unchanged available count.
	total := 3
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{TotalCopies: &total}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.TotalCopies != 3 {
		t.Errorf("TotalCopies: got %d, want 3", got.TotalCopies)
	}
	if got.AvailableCopies != 0 {
		t.Errorf("AvailableCopies: got %d, want 0", got.AvailableCopies)
	}
	if got.Status != domain.BookStatusUnavailable {
		t.Errorf("Status: got %q, want unavailable", got.Status)
	}
}

func TestUpdateBook_LowerTotalCopiesClamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "馆藏缩减", 5)

	total := 2
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{TotalCopies: &total}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.TotalCopies != 2 {
		t.Errorf("TotalCopies: got %d, want 2", got.TotalCopies)
	}
	// available clamps down to the new total
	if got.AvailableCopies != 2 {
		t.Errorf("AvailableCopies: got %d, want 2", got.AvailableCopies)
	}
	if got.Status != domain.BookStatusAvailable {
		t.Errorf("Status: got %q, want available", got.Status)
	}
}

func TestUpdateBook_LowerToZeroFlipsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "下架", 3)

	total := 0
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{TotalCopies: &total}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	assertBookState(t, s, "book-1", 0, domain.BookStatusUnavailable)
}

func TestUpdateBook_MaintenanceSticky(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "修复中", 3)

	status := domain.BookStatusMaintenance
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	assertBookState(t, s, "book-1", 3, domain.BookStatusMaintenance)

	// Copy-count edits do not clear maintenance.
	total := 5
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{TotalCopies: &total}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	assertBookState(t, s, "book-1", 3, domain.BookStatusMaintenance)

	// An explicit status change clears it and resyncs against availability.
	status = domain.BookStatusAvailable
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	assertBookState(t, s, "book-1", 3, domain.BookStatusAvailable)
}

func TestUpdateBook_ExplicitStatusResynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1", "有货", 3)

	// Setting unavailable while copies remain is overridden by the resync.
	status := domain.BookStatusUnavailable
	if err := s.UpdateBook(ctx, "book-1", domain.BookPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	assertBookState(t, s, "book-1", 3, domain.BookStatusAvailable)
}

func TestUpdateBook_InvalidStatus(t *testing.T) {
	s := newTestStore(t)

	seedBook(t, s, "book-1", "x", 1)

	bad := domain.BookStatus("lost")
	err := s.UpdateBook(context.Background(), "book-1", domain.BookPatch{Status: &bad})
	if domainerrors.CodeOf(err) != domainerrors.CodeValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestUpdateBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	title := "x"
	err := s.UpdateBook(context.Background(), "nonexistent", domain.BookPatch{Title: &title})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", "reader", domain.RoleMember)
	seedBook(t, s, "book-1", "即将删除", 2)
	seedLoan(t, s, "loan-1", "user-1", "book-1")

	if err := s.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	_, err := s.GetBook(ctx, "book-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}

	// Loan rows cascade with the book.
	_, err = s.GetLoan(ctx, "loan-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected loan cascade delete, got %v", err)
	}
}

func TestDeleteBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteBook(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}
