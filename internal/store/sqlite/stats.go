package sqlite

import (
	"context"
	"sort"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// BorrowStats returns the headline circulation summary. Overdue loans are
// classified against today, never read from a stored status.
func (s *Store) BorrowStats(ctx context.Context, today time.Time) (*domain.BorrowStats, error) {
	var stats domain.BorrowStats

	queries := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TotalBorrows, `SELECT COUNT(*) FROM borrow_records`, nil},
		{&stats.CurrentBorrows, `SELECT COUNT(*) FROM borrow_records WHERE status = 'borrowed'`, nil},
		{&stats.Overdue,
			`SELECT COUNT(*) FROM borrow_records WHERE status = 'borrowed' AND due_date < ?`,
			[]any{formatDate(today)}},
		{&stats.TotalBooks, `SELECT COUNT(*) FROM books`, nil},
		{&stats.AvailableBooks, `SELECT COUNT(*) FROM books WHERE available_copies > 0`, nil},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return &stats, nil
}

// standardCategories fixes the display order of the stock categories;
// anything else sorts after them by book count.
var standardCategories = map[string]int{
	"教育类": 0,
	"科普类": 1,
	"文学类": 2,
	"历史类": 3,
	"艺术类": 4,
	"其他类": 5,
	"未分类": 6,
}

// CategorySummary aggregates the catalog per category. Books without a
// category are reported under 未分类.
func (s *Store) CategorySummary(ctx context.Context) ([]domain.CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN category = '' THEN '未分类' ELSE category END AS category,
			COUNT(*), SUM(total_copies), SUM(available_copies)
		FROM books
		GROUP BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []domain.CategorySummary
	for rows.Next() {
		var c domain.CategorySummary
		if err := rows.Scan(&c.Category, &c.BookCount, &c.TotalCopies, &c.AvailableCopies); err != nil {
			return nil, err
		}
		summary = append(summary, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(summary, func(i, j int) bool {
		oi, oki := standardCategories[summary[i].Category]
		oj, okj := standardCategories[summary[j].Category]
		if !oki {
			oi = len(standardCategories)
		}
		if !okj {
			oj = len(standardCategories)
		}
		if oi != oj {
			return oi < oj
		}
		return summary[i].BookCount > summary[j].BookCount
	})
	return summary, nil
}

// BookStatusCounts returns the number of titles per status.
func (s *Store) BookStatusCounts(ctx context.Context) ([]domain.StatusCount, error) {
	return s.statusCounts(ctx, `SELECT status, COUNT(*) FROM books GROUP BY status ORDER BY status`)
}

// LoanStatusCounts returns the number of borrow records per stored status.
func (s *Store) LoanStatusCounts(ctx context.Context) ([]domain.StatusCount, error) {
	return s.statusCounts(ctx, `SELECT status, COUNT(*) FROM borrow_records GROUP BY status ORDER BY status`)
}

func (s *Store) statusCounts(ctx context.Context, query string) ([]domain.StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.StatusCount
	for rows.Next() {
		var c domain.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// BorrowReturnTrend returns per-day borrow and return counts for the last
// days days ending today. Every day is present, gap days with zero counts.
func (s *Store) BorrowReturnTrend(ctx context.Context, today time.Time, days int) ([]domain.TrendPoint, error) {
	if days < 1 {
		days = 1
	}
	start := today.AddDate(0, 0, -(days - 1))

	borrowMap, err := s.dayCounts(ctx,
		`SELECT borrow_date, COUNT(*) FROM borrow_records WHERE borrow_date >= ? GROUP BY borrow_date`,
		formatDate(start))
	if err != nil {
		return nil, err
	}
	returnMap, err := s.dayCounts(ctx,
		`SELECT return_date, COUNT(*) FROM borrow_records
		WHERE return_date IS NOT NULL AND return_date >= ? GROUP BY return_date`,
		formatDate(start))
	if err != nil {
		return nil, err
	}

	trend := make([]domain.TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := formatDate(start.AddDate(0, 0, i))
		trend = append(trend, domain.TrendPoint{
			Day:         day,
			BorrowCount: borrowMap[day],
			ReturnCount: returnMap[day],
		})
	}
	return trend, nil
}

func (s *Store) dayCounts(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	return counts, rows.Err()
}

// BorrowDurations returns the length in days of every completed loan,
// floored at zero.
func (s *Store) BorrowDurations(ctx context.Context) ([]int, error) {
	return s.intColumn(ctx, `
		SELECT MAX(CAST(julianday(return_date) - julianday(borrow_date) AS INTEGER), 0)
		FROM borrow_records
		WHERE return_date IS NOT NULL AND status = 'returned'`)
}

// OverdueDays returns, for every loan returned past its due date, how many
// days late it was.
func (s *Store) OverdueDays(ctx context.Context) ([]int, error) {
	return s.intColumn(ctx, `
		SELECT CAST(julianday(return_date) - julianday(due_date) AS INTEGER)
		FROM borrow_records
		WHERE return_date IS NOT NULL AND julianday(return_date) > julianday(due_date)`)
}

func (s *Store) intColumn(ctx context.Context, query string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RoleCounts returns the number of users per role.
func (s *Store) RoleCounts(ctx context.Context) ([]domain.RoleCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, COUNT(*) FROM users GROUP BY role ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.RoleCount
	for rows.Next() {
		var c domain.RoleCount
		var role string
		if err := rows.Scan(&role, &c.Count); err != nil {
			return nil, err
		}
		c.Role = domain.Role(role)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// AgeDistribution buckets the users with a known age into the standard
// bands. Every band is present, empty bands with a zero count.
func (s *Store) AgeDistribution(ctx context.Context) ([]domain.AgeBucket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT age FROM users WHERE age IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var age int
		if err := rows.Scan(&age); err != nil {
			return nil, err
		}
		counts[domain.AgeBucketFor(age)]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	buckets := make([]domain.AgeBucket, 0, len(domain.AgeBucketRanges))
	for _, r := range domain.AgeBucketRanges {
		buckets = append(buckets, domain.AgeBucket{Range: r, Count: counts[r]})
	}
	return buckets, nil
}

// RegistrationTrend returns per-month registration counts for the last
// months months ending with the current one. Every month is present, gap
// months with zero counts.
func (s *Store) RegistrationTrend(ctx context.Context, today time.Time, months int) ([]domain.MonthCount, error) {
	if months < 1 {
		months = 1
	}
	start := today.AddDate(0, -(months - 1), 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', created_at) AS month, COUNT(*)
		FROM users
		WHERE created_at >= ?
		GROUP BY month`,
		formatTime(time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		counts[month] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trend := make([]domain.MonthCount, 0, months)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	for i := months - 1; i >= 0; i-- {
		label := first.AddDate(0, -i, 0).Format("2006-01")
		trend = append(trend, domain.MonthCount{Month: label, Count: counts[label]})
	}
	return trend, nil
}

// TopBorrowers ranks users by lifetime borrow count.
func (s *Store) TopBorrowers(ctx context.Context, limit int) ([]domain.TopBorrower, error) {
	if limit < 1 {
		limit = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.username, COUNT(*) AS borrow_count
		FROM borrow_records r
		JOIN users u ON u.id = r.user_id
		GROUP BY r.user_id
		ORDER BY borrow_count DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []domain.TopBorrower
	for rows.Next() {
		var t domain.TopBorrower
		if err := rows.Scan(&t.UserID, &t.Name, &t.Username, &t.BorrowCount); err != nil {
			return nil, err
		}
		top = append(top, t)
	}
	return top, rows.Err()
}
