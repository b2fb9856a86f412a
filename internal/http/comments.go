package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/database"
	"github.com/theledlead/bookshelf/internal/entities"
)

// CommentsController serves threaded comments and likes. Every route
// needs an authenticated caller; edit and delete are author-only.
type CommentsController struct {
	books    BookStore
	comments CommentStore
	audit    *audit.Service
	policy   *bluemonday.Policy
}

// NewCommentsController creates a CommentsController. auditSvc may be nil.
func NewCommentsController(bookStore BookStore, commentStore CommentStore, auditSvc *audit.Service) *CommentsController {
	return &CommentsController{
		books:    bookStore,
		comments: commentStore,
		audit:    auditSvc,
		policy:   bluemonday.UGCPolicy(),
	}
}

type commentForm struct {
	Content string `form:"content" json:"content"`
}

func commentPayload(cm *entities.Comment) gin.H {
	return gin.H{
		"id":          cm.ID,
		"content":     cm.Content,
		"date_posted": cm.DatePosted,
		"user":        userSummary(cm.User),
	}
}

// content reads and sanitises the submitted text. Markup outside the UGC
// policy is dropped; text that is empty afterwards is rejected.
func (cc *CommentsController) content(c *gin.Context) (string, bool) {
	var form commentForm
	_ = c.ShouldBind(&form)
	content := strings.TrimSpace(cc.policy.Sanitize(form.Content))
	if content == "" {
		respondBadRequest(c, "Content cannot be empty")
		return "", false
	}
	return content, true
}

// loadComment resolves the :comment_id parameter, writing a 404 when it
// names no comment.
func (cc *CommentsController) loadComment(c *gin.Context) (*entities.Comment, bool) {
	id, ok := parseIDParam(c, "comment_id", "Comment")
	if !ok {
		return nil, false
	}
	comment, err := cc.comments.GetComment(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Comment")
			return nil, false
		}
		respondInternalError(c, err, "get comment")
		return nil, false
	}
	return comment, true
}

// loadOwnComment is loadComment plus the author check. Ownership can only
// be decided for a comment that exists, so 404 precedes 403 here.
func (cc *CommentsController) loadOwnComment(c *gin.Context) (*entities.Comment, bool) {
	comment, ok := cc.loadComment(c)
	if !ok {
		return nil, false
	}
	if comment.UserID != auth.GetUserID(c) {
		respondForbidden(c, auth.MessageForbidden)
		return nil, false
	}
	return comment, true
}

// AddComment handles POST /books/comment/add/:book_id/
func (cc *CommentsController) AddComment(c *gin.Context) {
	bookID, ok := parseIDParam(c, "book_id", "Book")
	if !ok {
		return
	}
	exists, err := cc.books.Exists(bookID)
	if err != nil {
		respondInternalError(c, err, "book exists")
		return
	}
	if !exists {
		respondNotFound(c, "Book")
		return
	}

	content, ok := cc.content(c)
	if !ok {
		return
	}

	comment := &entities.Comment{
		BookID:  bookID,
		UserID:  auth.GetUserID(c),
		Content: content,
	}
	if err := cc.comments.CreateComment(comment); err != nil {
		respondInternalError(c, err, "create comment")
		return
	}
	respondCreated(c, commentPayload(comment))
}

// ReplyToComment handles POST /books/comment/reply/:comment_id/
// The reply joins the parent's book.
func (cc *CommentsController) ReplyToComment(c *gin.Context) {
	parent, ok := cc.loadComment(c)
	if !ok {
		return
	}
	content, ok := cc.content(c)
	if !ok {
		return
	}

	reply, err := cc.comments.CreateReply(parent.ID, auth.GetUserID(c), content)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Comment")
			return
		}
		respondInternalError(c, err, "create reply")
		return
	}

	data := commentPayload(reply)
	data["parent_comment"] = parent.ID
	respondCreated(c, data)
}

// EditComment handles PUT /books/comment/edit/:comment_id/
func (cc *CommentsController) EditComment(c *gin.Context) {
	comment, ok := cc.loadOwnComment(c)
	if !ok {
		return
	}
	content, ok := cc.content(c)
	if !ok {
		return
	}

	updated, err := cc.comments.UpdateContent(comment.ID, content)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Comment")
			return
		}
		respondInternalError(c, err, "update comment")
		return
	}
	c.JSON(http.StatusOK, commentPayload(updated))
}

// DeleteComment handles DELETE /books/comment/delete/:comment_id/
// Replies and likes beneath the comment are removed with it.
func (cc *CommentsController) DeleteComment(c *gin.Context) {
	comment, ok := cc.loadOwnComment(c)
	if !ok {
		return
	}

	if err := cc.comments.DeleteComment(comment.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Comment")
			return
		}
		respondInternalError(c, err, "delete comment")
		return
	}
	if cc.audit != nil {
		cc.audit.LogCommentDelete(auth.GetUserID(c), comment.ID, comment.BookID)
	}
	respondSuccess(c, "Comment deleted successfully")
}

// ToggleLike handles POST /books/comment/like/:comment_id/
func (cc *CommentsController) ToggleLike(c *gin.Context) {
	comment, ok := cc.loadComment(c)
	if !ok {
		return
	}

	liked, err := cc.comments.ToggleLike(comment.ID, auth.GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "toggle like")
		return
	}
	if liked {
		respondSuccess(c, "Comment liked")
		return
	}
	respondSuccess(c, "Comment unliked")
}

// GetComment handles GET /books/comment/:comment_id/
func (cc *CommentsController) GetComment(c *gin.Context) {
	comment, ok := cc.loadComment(c)
	if !ok {
		return
	}

	replies, err := cc.comments.GetReplies(comment.ID)
	if err != nil {
		respondInternalError(c, err, "comment replies")
		return
	}
	likers, err := cc.comments.GetLikers(comment.ID)
	if err != nil {
		respondInternalError(c, err, "comment likes")
		return
	}

	replyItems := make([]gin.H, 0, len(replies))
	for _, r := range replies {
		replyItems = append(replyItems, gin.H{
			"reply_id":    r.ID,
			"content":     r.Content,
			"date_posted": r.DatePosted,
			"user":        userSummary(r.User),
		})
	}
	likeItems := make([]gin.H, 0, len(likers))
	for _, u := range likers {
		likeItems = append(likeItems, gin.H{"like_id": u.ID, "username": u.Username, "email": u.Email})
	}

	data := commentPayload(comment)
	data["reply_count"] = len(replies)
	data["like_count"] = len(likers)
	data["replies"] = replyItems
	data["likes"] = likeItems
	c.JSON(http.StatusOK, data)
}

// GetLikes handles GET /books/comment/likes/:comment_id/
func (cc *CommentsController) GetLikes(c *gin.Context) {
	comment, ok := cc.loadComment(c)
	if !ok {
		return
	}

	likers, err := cc.comments.GetLikers(comment.ID)
	if err != nil {
		respondInternalError(c, err, "comment likes")
		return
	}

	items := make([]gin.H, 0, len(likers))
	for _, u := range likers {
		items = append(items, gin.H{"id": u.ID, "username": u.Username, "email": u.Email})
	}
	c.JSON(http.StatusOK, gin.H{"likes": items, "like_count": len(likers)})
}
