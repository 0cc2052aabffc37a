package domain

// BorrowStats is the headline circulation summary. Overdue is computed at
// query time from due dates; nothing here reads a stored overdue status.
type BorrowStats struct {
	TotalBorrows   int `json:"total_borrows"`
	CurrentBorrows int `json:"current_borrows"`
	Overdue        int `json:"overdue"`
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
}

// CategorySummary aggregates the catalog per category.
type CategorySummary struct {
	Category        string `json:"category"`
	BookCount       int    `json:"book_count"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// StatusCount is a status/count pair, used for both book and loan status
// distributions.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// RoleCount counts users per role.
type RoleCount struct {
	Role  Role `json:"role"`
	Count int  `json:"count"`
}

// TrendPoint is one day in the borrow/return trend. Days with no activity
// are present with zero counts.
type TrendPoint struct {
	Day         string `json:"day"` // YYYY-MM-DD
	BorrowCount int    `json:"borrow_count"`
	ReturnCount int    `json:"return_count"`
}

// MonthCount is one month in the registration trend. Months with no
// registrations are present with a zero count.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// AgeBucket is one band of the age distribution. Users without an age are
// not counted.
type AgeBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// AgeBucketRanges lists the distribution bands in display order.
var AgeBucketRanges = []string{"0-17", "18-25", "26-35", "36-45", "46-60", "60+"}

// AgeBucketFor returns the band label for an age.
func AgeBucketFor(age int) string {
	switch {
	case age <= 17:
		return "0-17"
	case age <= 25:
		return "18-25"
	case age <= 35:
		return "26-35"
	case age <= 45:
		return "36-45"
	case age <= 60:
		return "46-60"
	default:
		return "60+"
	}
}

// TopBorrower is one row of the most-active-borrowers ranking.
type TopBorrower struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	BorrowCount int    `json:"borrow_count"`
}

// AdminDashboard bundles the aggregates served to the admin client in one
// round trip.
type AdminDashboard struct {
	Stats             BorrowStats       `json:"stats"`
	CategorySummary   []CategorySummary `json:"category_summary"`
	BookStatusCounts  []StatusCount     `json:"book_status_counts"`
	BorrowTrend       []TrendPoint      `json:"borrow_trend"`
	BorrowStatusCount []StatusCount     `json:"borrow_status_counts"`
	BorrowDurations   []int             `json:"borrow_durations"`
	OverdueDays       []int             `json:"overdue_days"`
}

// UserDashboard bundles the user-population aggregates.
type UserDashboard struct {
	RoleCounts        []RoleCount   `json:"role_counts"`
	AgeDistribution   []AgeBucket   `json:"age_distribution"`
	RegistrationTrend []MonthCount  `json:"registration_trend"`
	TopBorrowers      []TopBorrower `json:"top_borrowers"`
}
