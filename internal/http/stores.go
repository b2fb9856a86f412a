package http

import (
	"time"

	"github.com/theledlead/bookshelf/internal/analytics"
	auditRepo "github.com/theledlead/bookshelf/internal/database/audit"
	"github.com/theledlead/bookshelf/internal/database/books"
	"github.com/theledlead/bookshelf/internal/database/views"
	"github.com/theledlead/bookshelf/internal/entities"
)

// Each controller depends on the narrow store it uses; the repositories
// under internal/database satisfy them.

// BookStore covers book CRUD, read-records and the listing counters.
type BookStore interface {
	CreateBook(book *entities.Book) error
	GetBook(id uint) (*entities.Book, error)
	ListBooks() ([]entities.Book, error)
	UpdateBook(id uint, changes books.Changes) (*entities.Book, bool, error)
	DeleteBook(id uint) (*entities.Book, error)
	MarkRead(userID, bookID uint, at time.Time) (bool, error)
	GetStatsForBooks(bookIDs []uint) (map[uint]books.Stats, error)
	Exists(id uint) (bool, error)
}

// CommentStore covers threaded comments and likes.
type CommentStore interface {
	CreateComment(comment *entities.Comment) error
	CreateReply(parentID, userID uint, content string) (*entities.Comment, error)
	GetComment(id uint) (*entities.Comment, error)
	GetReplies(commentID uint) ([]entities.Comment, error)
	GetCommentsForBook(bookID uint) ([]entities.Comment, error)
	UpdateContent(id uint, content string) (*entities.Comment, error)
	DeleteComment(id uint) error
	ToggleLike(commentID, userID uint) (bool, error)
	GetLikers(commentID uint) ([]entities.User, error)
}

// RatingStore covers the rating upsert and per-book reads.
type RatingStore interface {
	Upsert(userID, bookID uint, value int) (*entities.Rating, bool, error)
	GetRatingsForBook(bookID uint) ([]entities.Rating, error)
}

// ViewStore aggregates read-records for the admin reports.
type ViewStore interface {
	Count(f views.Filter) (views.Counts, error)
	ForPeriod(p analytics.Period, bookID *uint) (views.Counts, error)
}

// AuditReader lists recorded audit events.
type AuditReader interface {
	GetEvents(f auditRepo.Filter) ([]entities.AuditEvent, int64, error)
}
