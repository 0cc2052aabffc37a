package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
)

// testBcryptCost keeps password hashing fast in tests.
const testBcryptCost = 4

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedUser inserts an account directly through the store.
func seedUser(t *testing.T, st store.Store, id, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: "$2a$04$fakehashfortest",
		Role:         role,
		Name:         "测试用户",
		Email:        username + "@example.com",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

// seedBook inserts a catalog entry directly through the store.
func seedBook(t *testing.T, st store.Store, id, title string, copies int) *domain.Book {
	t.Helper()
	b := &domain.Book{
		ID:          id,
		Title:       title,
		Author:      "测试作者",
		Category:    "文学类",
		TotalCopies: copies,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, st.CreateBook(context.Background(), b))
	return b
}
