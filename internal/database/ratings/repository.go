// Package ratings provides the atomic rating upsert and per-book rating
// queries.
package ratings

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theledlead/bookshelf/internal/analytics"
	"github.com/theledlead/bookshelf/internal/entities"
)

// ErrInvalidRating is returned for values outside 1-5. Nothing is written.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Repository handles rating database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new ratings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores userID's rating of bookID. It reports true when a new
// row was created and false when an existing rating was overwritten.
// The insert relies on the (user_id, book_id) unique index, so two
// concurrent first ratings cannot both create a row.
func (r *Repository) Upsert(userID, bookID uint, value int) (*entities.Rating, bool, error) {
	if value < entities.MinRating || value > entities.MaxRating {
		return nil, false, ErrInvalidRating
	}

	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&entities.Rating{UserID: userID, BookID: bookID, Value: value})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			created = true
			return nil
		}
		return tx.Model(&entities.Rating{}).
			Where("user_id = ? AND book_id = ?", userID, bookID).
			UpdateColumn("rating", value).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save rating: %w", err)
	}

	var rating entities.Rating
	if err := r.db.Preload("User").
		Where("user_id = ? AND book_id = ?", userID, bookID).
		First(&rating).Error; err != nil {
		return nil, false, err
	}
	return &rating, created, nil
}

// GetRatingsForBook returns every rating of a book with its author.
func (r *Repository) GetRatingsForBook(bookID uint) ([]entities.Rating, error) {
	var ratings []entities.Rating
	err := r.db.Preload("User").Where("book_id = ?", bookID).Order("id ASC").Find(&ratings).Error
	return ratings, err
}

// AverageForBook returns the rounded mean rating of a book, 0 when it
// has no ratings.
func (r *Repository) AverageForBook(bookID uint) (float64, error) {
	var values []int
	if err := r.db.Model(&entities.Rating{}).Where("book_id = ?", bookID).Pluck("rating", &values).Error; err != nil {
		return 0, err
	}
	return analytics.AverageRating(values), nil
}
