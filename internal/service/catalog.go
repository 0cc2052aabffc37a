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

// CatalogService handles the book catalog: search, lookup and the admin
// add/update/delete operations.
type CatalogService struct {
	store  store.Store
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st store.Store, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: st, logger: logger}
}

// AddBookRequest carries a new catalog entry.
type AddBookRequest struct {
	Title       string `json:"title" validate:"required,max=256"`
	Author      string `json:"author" validate:"required,max=128"`
	ISBN        string `json:"isbn" validate:"omitempty,max=32"`
	Category    string `json:"category" validate:"omitempty,max=64"`
	Publisher   string `json:"publisher" validate:"omitempty,max=128"`
	PublishDate string `json:"publish_date" validate:"omitempty,max=16"`
	TotalCopies int    `json:"total_copies" validate:"gte=0"`
}

// AddBook creates a catalog entry. Available copies start equal to the
// total and the status follows from the copy count.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book id: %w", err)
	}

	book := &domain.Book{
		ID:          bookID,
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Publisher:   req.Publisher,
		PublishDate: req.PublishDate,
		TotalCopies: req.TotalCopies,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("该ISBN已存在")
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domainerrors.Storage(err, "create book")
	}

	s.logger.Info("book added", "book_id", book.ID, "title", book.Title, "copies", book.TotalCopies)
	return book, nil
}

// GetBook returns a catalog entry by ID.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("图书不存在")
		}
		return nil, domainerrors.Storage(err, "get book")
	}
	return book, nil
}

// Search returns catalog entries matching the keyword and category filters.
// Both filters are optional.
func (s *CatalogService) Search(ctx context.Context, keyword, category string) ([]*domain.Book, error) {
	books, err := s.store.SearchBooks(ctx, keyword, category)
	if err != nil {
		return nil, domainerrors.Storage(err, "search books")
	}
	return books, nil
}

// Categories returns the distinct categories present in the catalog.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "list categories")
	}
	return categories, nil
}

// UpdateBook applies a partial edit to a catalog entry. Copy-count changes
// clamp availability and resync the status inside the store transaction.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, patch domain.BookPatch) (*domain.Book, error) {
	if err := s.store.UpdateBook(ctx, bookID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("图书不存在")
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("该ISBN已存在")
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domainerrors.Storage(err, "update book")
	}

	s.logger.Info("book updated", "book_id", bookID)
	return s.GetBook(ctx, bookID)
}

// DeleteBook removes a catalog entry together with its loan history.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) error {
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("图书不存在")
		}
		return domainerrors.Storage(err, "delete book")
	}

	s.logger.Info("book deleted", "book_id", bookID)
	return nil
}
