package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// Dashboard aggregation defaults.
const (
	defaultTrendDays     = 30
	defaultTrendMonths   = 12
	defaultTopBorrowers  = 10
	maxTrendDays         = 366
	maxTrendMonths       = 60
	maxTopBorrowersLimit = 100
)

// StatsService serves the read-only aggregates shown on the dashboards.
type StatsService struct {
	store  store.Store
	logger *slog.Logger

	now func() time.Time
}

// NewStatsService creates a new statistics service.
func NewStatsService(st store.Store, logger *slog.Logger) *StatsService {
	return &StatsService{store: st, logger: logger, now: time.Now}
}

// Statistics returns the headline circulation summary.
func (s *StatsService) Statistics(ctx context.Context) (*domain.BorrowStats, error) {
	stats, err := s.store.BorrowStats(ctx, s.now())
	if err != nil {
		return nil, domainerrors.Storage(err, "borrow stats")
	}
	return stats, nil
}

// AdminDashboard bundles the catalog and circulation aggregates.
func (s *StatsService) AdminDashboard(ctx context.Context, trendDays int) (*domain.AdminDashboard, error) {
	trendDays = clampRange(trendDays, defaultTrendDays, maxTrendDays)
	now := s.now()

	stats, err := s.store.BorrowStats(ctx, now)
	if err != nil {
		return nil, domainerrors.Storage(err, "borrow stats")
	}
	categories, err := s.store.CategorySummary(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "category summary")
	}
	bookStatus, err := s.store.BookStatusCounts(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "book status counts")
	}
	trend, err := s.store.BorrowReturnTrend(ctx, now, trendDays)
	if err != nil {
		return nil, domainerrors.Storage(err, "borrow trend")
	}
	loanStatus, err := s.store.LoanStatusCounts(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "loan status counts")
	}
	durations, err := s.store.BorrowDurations(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "borrow durations")
	}
	overdueDays, err := s.store.OverdueDays(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "overdue days")
	}

	return &domain.AdminDashboard{
		Stats:             *stats,
		CategorySummary:   categories,
		BookStatusCounts:  bookStatus,
		BorrowTrend:       trend,
		BorrowStatusCount: loanStatus,
		BorrowDurations:   durations,
		OverdueDays:       overdueDays,
	}, nil
}

// UserDashboard bundles the user-population aggregates.
func (s *StatsService) UserDashboard(ctx context.Context, months, topLimit int) (*domain.UserDashboard, error) {
	months = clampRange(months, defaultTrendMonths, maxTrendMonths)
	topLimit = clampRange(topLimit, defaultTopBorrowers, maxTopBorrowersLimit)
	now := s.now()

	roles, err := s.store.RoleCounts(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "role counts")
	}
	ages, err := s.store.AgeDistribution(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "age distribution")
	}
	trend, err := s.store.RegistrationTrend(ctx, now, months)
	if err != nil {
		return nil, domainerrors.Storage(err, "registration trend")
	}
	top, err := s.store.TopBorrowers(ctx, topLimit)
	if err != nil {
		return nil, domainerrors.Storage(err, "top borrowers")
	}

	return &domain.UserDashboard{
		RoleCounts:        roles,
		AgeDistribution:   ages,
		RegistrationTrend: trend,
		TopBorrowers:      top,
	}, nil
}

// clampRange substitutes def for non-positive values and caps at max.
func clampRange(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
