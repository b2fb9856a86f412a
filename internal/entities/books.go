package entities

import "time"

// Book is a published piece of content. DatePublished is refreshed on
// every save, so listings ordered by it show the most recently touched
// books first.
type Book struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	ImagePath     string    `gorm:"size:512" json:"-"` // media store key of an uploaded cover
	ImageURLLink  string    `gorm:"size:2048" json:"image_url_link"`
	Content       string    `gorm:"type:text" json:"content"`
	DatePublished time.Time `gorm:"index;autoUpdateTime" json:"date_published"`
	PublishedByID uint      `gorm:"index;not null" json:"-"`
	PublishedBy   User      `gorm:"foreignKey:PublishedByID;constraint:OnDelete:CASCADE" json:"published_by"`
}

// ReadBook records the first time a user opened a book. The composite
// primary key keeps at most one row per (user, book).
type ReadBook struct {
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BookID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"book_id"`
	User     User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Book     Book      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ReadDate time.Time `gorm:"index;not null" json:"read_date"`
}

func (ReadBook) TableName() string {
	return "read_books"
}
