package domain

import "time"

// BookStatus represents the availability state of a title.
type BookStatus string

const (
	// BookStatusAvailable indicates at least one copy can be borrowed.
	BookStatusAvailable BookStatus = "available"
	// BookStatusUnavailable indicates every copy is currently on loan (or the
	// title has no copies at all).
	BookStatusUnavailable BookStatus = "unavailable"
	// BookStatusMaintenance is set explicitly by an admin and is sticky:
	// availability changes never overwrite it. Only an admin update that sets
	// a different status clears it.
	BookStatusMaintenance BookStatus = "maintenance"
)

// ValidBookStatus reports whether s is a status an admin may set on a book.
func ValidBookStatus(s BookStatus) bool {
	switch s {
	case BookStatusAvailable, BookStatusUnavailable, BookStatusMaintenance:
		return true
	}
	return false
}

// Book represents a title in the catalog together with its copy counts.
//
// Invariants, maintained by the circulation paths in the store:
//
//	0 <= AvailableCopies <= TotalCopies
//	AvailableCopies == TotalCopies - count(active loans on this book)
//	AvailableCopies == 0 => Status != available
//	AvailableCopies >  0 => Status != unavailable
type Book struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn,omitempty"`
	Category        string     `json:"category,omitempty"`
	Publisher       string     `json:"publisher,omitempty"`
	PublishDate     string     `json:"publish_date,omitempty"` // YYYY-MM-DD
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	Status          BookStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// BookPatch is an explicit partial update for a book. A nil field is left
// untouched. Setting Status to maintenance pins the status; any other
// explicit status is subsequently resynced against availability.
type BookPatch struct {
	Title       *string     `json:"title,omitempty"`
	Author      *string     `json:"author,omitempty"`
	ISBN        *string     `json:"isbn,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Publisher   *string     `json:"publisher,omitempty"`
	PublishDate *string     `json:"publish_date,omitempty"`
	TotalCopies *int        `json:"total_copies,omitempty"`
	Status      *BookStatus `json:"status,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p BookPatch) IsZero() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil &&
		p.Category == nil && p.Publisher == nil && p.PublishDate == nil &&
		p.TotalCopies == nil && p.Status == nil
}

// DeriveBookStatus is the single derivation rule for a book's status after
// any mutation that can change availability. Maintenance is sticky and is
// never auto-changed; otherwise the status follows the copy count.
func DeriveBookStatus(availableCopies int, current BookStatus) BookStatus {
	if current == BookStatusMaintenance {
		return BookStatusMaintenance
	}
	if availableCopies <= 0 {
		return BookStatusUnavailable
	}
	return BookStatusAvailable
}
