// Package books provides database operations for books and read-records.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetBook(123)
//	created, err := repo.MarkRead(userID, book.ID, time.Now())
package books

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theledlead/bookshelf/internal/analytics"
	"github.com/theledlead/bookshelf/internal/entities"
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Stats holds the computed counters shown next to a book.
type Stats struct {
	AverageRating float64
	TotalRatings  int64
	TotalComments int64
}

// Changes lists the fields a partial update may overwrite. Empty values
// leave the stored field untouched.
type Changes struct {
	Title        string
	Content      string
	ImagePath    string
	ImageURLLink string
}

// IsEmpty reports whether the update carries nothing to apply.
func (c Changes) IsEmpty() bool {
	return c.Title == "" && c.Content == "" && c.ImagePath == "" && c.ImageURLLink == ""
}

// CreateBook inserts a book and loads its publisher.
func (r *Repository) CreateBook(book *entities.Book) error {
	if err := r.db.Omit(clause.Associations).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return r.db.First(&book.PublishedBy, book.PublishedByID).Error
}

// GetBook retrieves a book with its publisher.
func (r *Repository) GetBook(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("PublishedBy").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns every book, newest publication first.
func (r *Repository) ListBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Preload("PublishedBy").
		Order("date_published DESC").Order("id DESC").
		Find(&books).Error
	return books, err
}

// UpdateBook applies non-empty changes to a book. It reports false when
// there was nothing to apply.
func (r *Repository) UpdateBook(id uint, changes Changes) (*entities.Book, bool, error) {
	book, err := r.GetBook(id)
	if err != nil {
		return nil, false, err
	}
	if changes.IsEmpty() {
		return book, false, nil
	}

	updates := map[string]any{"date_published": time.Now()}
	if changes.Title != "" {
		updates["title"] = changes.Title
	}
	if changes.Content != "" {
		updates["content"] = changes.Content
	}
	if changes.ImagePath != "" {
		updates["image_path"] = changes.ImagePath
	}
	if changes.ImageURLLink != "" {
		updates["image_url_link"] = changes.ImageURLLink
	}

	if err := r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("failed to update book: %w", err)
	}

	book, err = r.GetBook(id)
	if err != nil {
		return nil, false, err
	}
	return book, true, nil
}

// SetImagePath records the media key of a cover mirrored in the background.
func (r *Repository) SetImagePath(id uint, path string) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).UpdateColumn("image_path", path)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteBook removes a book together with its comments, comment likes,
// ratings and read-records. The deleted book is returned so callers can
// clean up its stored cover.
func (r *Repository) DeleteBook(id uint) (*entities.Book, error) {
	book, err := r.GetBook(id)
	if err != nil {
		return nil, err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&entities.Comment{}).Select("id").Where("book_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&entities.CommentLike{}).Error; err != nil {
			return err
		}
		// Replies first so the self-reference never dangles.
		if err := tx.Where("book_id = ? AND parent_comment_id IS NOT NULL", id).Delete(&entities.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&entities.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&entities.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&entities.ReadBook{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Book{}, id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete book: %w", err)
	}
	return book, nil
}

// MarkRead records that userID opened bookID. Only the first call for a
// (user, book) pair writes a row; later calls report false and leave the
// original read date untouched.
func (r *Repository) MarkRead(userID, bookID uint, at time.Time) (bool, error) {
	result := r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entities.ReadBook{UserID: userID, BookID: bookID, ReadDate: at.UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark book read: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetReadRecord returns the read-record for a (user, book) pair.
func (r *Repository) GetReadRecord(userID, bookID uint) (*entities.ReadBook, error) {
	var rb entities.ReadBook
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&rb).Error
	if err != nil {
		return nil, err
	}
	return &rb, nil
}

// GetStats computes the rating and comment counters for one book.
func (r *Repository) GetStats(bookID uint) (Stats, error) {
	all, err := r.GetStatsForBooks([]uint{bookID})
	if err != nil {
		return Stats{}, err
	}
	return all[bookID], nil
}

type ratingAggregate struct {
	BookID  uint
	Average float64
	Total   int64
}

type commentAggregate struct {
	BookID uint
	Total  int64
}

// GetStatsForBooks computes counters for many books with two grouped
// queries. Books without ratings or comments get zero values.
func (r *Repository) GetStatsForBooks(bookIDs []uint) (map[uint]Stats, error) {
	stats := make(map[uint]Stats, len(bookIDs))
	if len(bookIDs) == 0 {
		return stats, nil
	}

	var ratings []ratingAggregate
	var comments []commentAggregate

	var g errgroup.Group
	g.Go(func() error {
		return r.db.Model(&entities.Rating{}).
			Select("book_id, AVG(rating) AS average, COUNT(*) AS total").
			Where("book_id IN ?", bookIDs).
			Group("book_id").
			Scan(&ratings).Error
	})
	g.Go(func() error {
		return r.db.Model(&entities.Comment{}).
			Select("book_id, COUNT(*) AS total").
			Where("book_id IN ?", bookIDs).
			Group("book_id").
			Scan(&comments).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate book stats: %w", err)
	}

	for _, id := range bookIDs {
		stats[id] = Stats{}
	}
	for _, agg := range ratings {
		s := stats[agg.BookID]
		s.AverageRating = analytics.RoundRating(agg.Average)
		s.TotalRatings = agg.Total
		stats[agg.BookID] = s
	}
	for _, agg := range comments {
		s := stats[agg.BookID]
		s.TotalComments = agg.Total
		stats[agg.BookID] = s
	}
	return stats, nil
}

// Exists reports whether a book with the given id exists.
func (r *Repository) Exists(id uint) (bool, error) {
	var count int64
	if err := r.db.Model(&entities.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
