package entities

import "time"

type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookID          uint      `gorm:"index;not null" json:"book"`
	Book            Book      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID          uint      `gorm:"index;not null" json:"-"`
	User            User      `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	DatePosted      time.Time `gorm:"autoCreateTime;index" json:"date_posted"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment"`
	Replies         []Comment `gorm:"foreignKey:ParentCommentID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

// IsReply reports whether the comment is threaded under another one.
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil
}

// CommentLike is one user's like on one comment.
type CommentLike struct {
	CommentID uint      `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Comment   Comment   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (CommentLike) TableName() string {
	return "comment_likes"
}
