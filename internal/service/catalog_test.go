package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
)

func TestCatalogService_AddBook(t *testing.T) {
	st := newTestStore(t)
	svc := NewCatalogService(st, testLogger())
	ctx := context.Background()

	book, err := svc.AddBook(ctx, AddBookRequest{
		Title:       "三体",
		Author:      "刘慈欣",
		ISBN:        "9787536692930",
		Category:    "科普类",
		TotalCopies: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.Equal(t, domain.BookStatusAvailable, book.Status)

	_, err = svc.AddBook(ctx, AddBookRequest{Author: "佚名", TotalCopies: 1})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	// Duplicate ISBN.
	_, err = svc.AddBook(ctx, AddBookRequest{
		Title: "三体(再版)", Author: "刘慈欣", ISBN: "9787536692930", TotalCopies: 1,
	})
	assert.Equal(t, domainerrors.CodeAlreadyExists, domainerrors.CodeOf(err))
}

func TestCatalogService_SearchAndCategories(t *testing.T) {
	st := newTestStore(t)
	svc := NewCatalogService(st, testLogger())
	ctx := context.Background()

	for _, req := range []AddBookRequest{
		{Title: "三体", Author: "刘慈欣", Category: "科普类", TotalCopies: 1},
		{Title: "活着", Author: "余华", Category: "文学类", TotalCopies: 1},
	} {
		_, err := svc.AddBook(ctx, req)
		require.NoError(t, err)
	}

	books, err := svc.Search(ctx, "三体", "")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "三体", books[0].Title)

	all, err := svc.Search(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"科普类", "文学类"}, cats)
}

func TestCatalogService_UpdateBook(t *testing.T) {
	st := newTestStore(t)
	svc := NewCatalogService(st, testLogger())
	ctx := context.Background()

	book, err := svc.AddBook(ctx, AddBookRequest{
		Title: "三体", Author: "刘慈欣", TotalCopies: 5,
	})
	require.NoError(t, err)

	total := 2
	updated, err := svc.UpdateBook(ctx, book.ID, domain.BookPatch{TotalCopies: &total})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TotalCopies)
	assert.Equal(t, 2, updated.AvailableCopies)

	title := "x"
	_, err = svc.UpdateBook(ctx, "missing", domain.BookPatch{Title: &title})
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
	assert.Equal(t, "图书不存在", err.Error())
}

func TestCatalogService_DeleteBook(t *testing.T) {
	st := newTestStore(t)
	svc := NewCatalogService(st, testLogger())
	ctx := context.Background()

	book, err := svc.AddBook(ctx, AddBookRequest{
		Title: "三体", Author: "刘慈欣", TotalCopies: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))

	_, err = svc.GetBook(ctx, book.ID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	err = svc.DeleteBook(ctx, book.ID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}
