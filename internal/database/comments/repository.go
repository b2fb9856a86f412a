// Package comments provides database operations for threaded comments
// and comment likes.
package comments

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theledlead/bookshelf/internal/entities"
)

// Repository handles comment and like database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new comments repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateComment inserts a top-level comment on a book and loads its author.
func (r *Repository) CreateComment(comment *entities.Comment) error {
	comment.ParentCommentID = nil
	if err := r.db.Omit(clause.Associations).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return r.db.First(&comment.User, comment.UserID).Error
}

// CreateReply threads a new comment under parentID. The reply always
// belongs to the parent's book.
func (r *Repository) CreateReply(parentID, userID uint, content string) (*entities.Comment, error) {
	parent, err := r.GetComment(parentID)
	if err != nil {
		return nil, err
	}

	reply := &entities.Comment{
		BookID:          parent.BookID,
		UserID:          userID,
		Content:         content,
		ParentCommentID: &parent.ID,
	}
	if err := r.db.Omit(clause.Associations).Create(reply).Error; err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}
	if err := r.db.First(&reply.User, userID).Error; err != nil {
		return nil, err
	}
	return reply, nil
}

// GetComment retrieves a comment with its author.
func (r *Repository) GetComment(id uint) (*entities.Comment, error) {
	var comment entities.Comment
	err := r.db.Preload("User").First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetReplies returns the direct replies of a comment, oldest first.
func (r *Repository) GetReplies(commentID uint) ([]entities.Comment, error) {
	var replies []entities.Comment
	err := r.db.Preload("User").
		Where("parent_comment_id = ?", commentID).
		Order("date_posted ASC").Order("id ASC").
		Find(&replies).Error
	return replies, err
}

// GetCommentsForBook returns every comment on a book (replies included),
// oldest first.
func (r *Repository) GetCommentsForBook(bookID uint) ([]entities.Comment, error) {
	var comments []entities.Comment
	err := r.db.Preload("User").
		Where("book_id = ?", bookID).
		Order("date_posted ASC").Order("id ASC").
		Find(&comments).Error
	return comments, err
}

// UpdateContent replaces a comment's text. The post date is unchanged.
func (r *Repository) UpdateContent(id uint, content string) (*entities.Comment, error) {
	result := r.db.Model(&entities.Comment{}).Where("id = ?", id).UpdateColumn("content", content)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update comment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetComment(id)
}

// DeleteComment removes a comment, every reply beneath it and all of
// their likes.
func (r *Repository) DeleteComment(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var root entities.Comment
		if err := tx.Select("id").First(&root, id).Error; err != nil {
			return err
		}

		ids := []uint{root.ID}
		frontier := []uint{root.ID}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&entities.Comment{}).
				Where("parent_comment_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}

		if err := tx.Where("comment_id IN ?", ids).Delete(&entities.CommentLike{}).Error; err != nil {
			return err
		}
		// Deepest replies were discovered last; delete them first.
		for i := len(ids) - 1; i >= 0; i-- {
			if err := tx.Delete(&entities.Comment{}, ids[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ToggleLike adds userID to the comment's likes, or removes it when it
// is already there. It reports whether the comment is liked afterwards.
func (r *Repository) ToggleLike(commentID, userID uint) (bool, error) {
	liked := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&entities.CommentLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&entities.CommentLike{CommentID: commentID, UserID: userID}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	return liked, nil
}

// GetLikers returns the users who liked a comment, in like order.
func (r *Repository) GetLikers(commentID uint) ([]entities.User, error) {
	var users []entities.User
	err := r.db.Model(&entities.User{}).
		Joins("JOIN comment_likes ON comment_likes.user_id = users.id").
		Where("comment_likes.comment_id = ?", commentID).
		Order("comment_likes.created_at ASC").Order("users.id ASC").
		Find(&users).Error
	return users, err
}

// CountReplies returns the number of direct replies to a comment.
func (r *Repository) CountReplies(commentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Comment{}).Where("parent_comment_id = ?", commentID).Count(&count).Error
	return count, err
}
