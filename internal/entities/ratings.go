package entities

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a user's star rating of a book. The unique index on
// (user_id, book_id) backs the atomic upsert.
type Rating struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	BookID uint `gorm:"uniqueIndex:idx_rating_user_book,priority:2;index;not null" json:"book"`
	Book   Book `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID uint `gorm:"uniqueIndex:idx_rating_user_book,priority:1;not null" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	Value  int  `gorm:"column:rating;not null;check:chk_rating_range,rating >= 1 AND rating <= 5" json:"rating"`
}
