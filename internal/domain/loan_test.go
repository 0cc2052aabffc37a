package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBorrowRecord_IsOverdue(t *testing.T) {
	today := day("2026-03-10")

	tests := []struct {
		name    string
		status  LoanStatus
		due     time.Time
		overdue bool
	}{
		{"borrowed past due", LoanStatusBorrowed, day("2026-03-09"), true},
		{"borrowed due today", LoanStatusBorrowed, day("2026-03-10"), false},
		{"borrowed due later", LoanStatusBorrowed, day("2026-04-01"), false},
		{"returned past due is not overdue", LoanStatusReturned, day("2026-01-01"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &BorrowRecord{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.overdue, rec.IsOverdue(today))
		})
	}
}

func TestBorrowRecord_IsOverdue_IgnoresTimeOfDay(t *testing.T) {
	// A loan due today is not overdue even late in the evening.
	rec := &BorrowRecord{Status: LoanStatusBorrowed, DueDate: day("2026-03-10")}
	evening := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	assert.False(t, rec.IsOverdue(evening))
}

func TestLoanPatch_IsZero(t *testing.T) {
	assert.True(t, LoanPatch{}.IsZero())

	status := LoanStatusReturned
	assert.False(t, LoanPatch{Status: &status}.IsZero())

	fine := 2.5
	assert.False(t, LoanPatch{FineAmount: &fine}.IsZero())
}
