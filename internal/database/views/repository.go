// Package views aggregates read-records into the view counts shown on
// the admin reports.
//
// A view is a distinct (user, book) read-record, so a reader opening a
// book many times still counts once. Totals across books are summed,
// not deduplicated per reader.
package views

import (
	"gorm.io/gorm"

	"github.com/theledlead/bookshelf/internal/analytics"
	"github.com/theledlead/bookshelf/internal/entities"
)

// Filter narrows a view count. Nil fields are not applied.
type Filter struct {
	BookID *uint
	Period *analytics.Period
}

// Counts is the result of a view aggregation.
type Counts struct {
	Views int64 // distinct (reader, book) pairs
	Books int64 // distinct books read at least once
}

// Repository handles view aggregation queries.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new views repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Count aggregates read-records matching the filter. Read-records of
// deleted books are never counted.
func (r *Repository) Count(f Filter) (Counts, error) {
	query := r.db.Model(&entities.ReadBook{}).
		Joins("JOIN books ON books.id = read_books.book_id")
	if f.BookID != nil {
		query = query.Where("read_books.book_id = ?", *f.BookID)
	}
	if f.Period != nil {
		query = query.Where("read_books.read_date >= ? AND read_books.read_date < ?",
			f.Period.Start.UTC(), f.Period.End.UTC())
	}

	var counts Counts
	err := query.Select("COUNT(*) AS views, COUNT(DISTINCT read_books.book_id) AS books").
		Scan(&counts).Error
	return counts, err
}

// AllTime returns the number of views across every book.
func (r *Repository) AllTime() (int64, error) {
	c, err := r.Count(Filter{})
	return c.Views, err
}

// ForBook returns the number of distinct readers of one book.
func (r *Repository) ForBook(bookID uint) (int64, error) {
	c, err := r.Count(Filter{BookID: &bookID})
	return c.Views, err
}

// ForPeriod returns views and distinct books within a period, optionally
// restricted to one book.
func (r *Repository) ForPeriod(p analytics.Period, bookID *uint) (Counts, error) {
	return r.Count(Filter{BookID: bookID, Period: &p})
}
