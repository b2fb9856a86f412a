package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/entities"
)

type commentFixture struct {
	env         *testEnv
	bookID      uint
	authorToken string
	otherToken  string
}

func setupCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	env := setupTestEnv(t)
	_, staffToken := env.user(t, "staff", true)
	_, authorToken := env.user(t, "author", false)
	_, otherToken := env.user(t, "other", false)
	return &commentFixture{
		env:         env,
		bookID:      env.createBook(t, "Dune", staffToken),
		authorToken: authorToken,
		otherToken:  otherToken,
	}
}

func (f *commentFixture) addComment(t *testing.T, content string) uint {
	t.Helper()
	w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": content}, f.authorToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(t, w)["id"].(float64))
}

func TestCommentsController_Add(t *testing.T) {
	f := setupCommentFixture(t)

	t.Run("creates a top-level comment", func(t *testing.T) {
		w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": "Great read"}, f.authorToken)
		require.Equal(t, http.StatusCreated, w.Code)

		body := decode(t, w)
		assert.Equal(t, "Great read", body["content"])
		assert.Equal(t, "author", body["user"].(map[string]interface{})["username"])
		assert.NotEmpty(t, body["date_posted"])
	})

	t.Run("requires authentication", func(t *testing.T) {
		w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": "hi"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing book comes before empty content", func(t *testing.T) {
		w := f.env.form(http.MethodPost, "/books/comment/add/9999/", map[string]string{"content": ""}, f.authorToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Book not found", decode(t, w)["message"])
	})

	t.Run("rejects empty content", func(t *testing.T) {
		w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": "  "}, f.authorToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Content cannot be empty", decode(t, w)["message"])
	})

	t.Run("strips unsafe markup", func(t *testing.T) {
		w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": `<b>bold</b><script>alert(1)</script>`}, f.authorToken)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "<b>bold</b>", decode(t, w)["content"])
	})

	t.Run("markup-only content is empty", func(t *testing.T) {
		w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/add/%d/", f.bookID), map[string]string{"content": `<script>alert(1)</script>`}, f.authorToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCommentsController_ReplyAndDetail(t *testing.T) {
	f := setupCommentFixture(t)
	parentID := f.addComment(t, "First")

	w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/reply/%d/", parentID), map[string]string{"content": "Reply"}, f.otherToken)
	require.Equal(t, http.StatusCreated, w.Code)
	reply := decode(t, w)
	assert.Equal(t, float64(parentID), reply["parent_comment"])

	stored, err := f.env.comments.GetComment(uint(reply["id"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, f.bookID, stored.BookID)

	w = f.env.form(http.MethodPost, "/books/comment/reply/9999/", map[string]string{"content": "Reply"}, f.otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Comment not found", decode(t, w)["message"])

	w = f.env.get(fmt.Sprintf("/books/comment/%d/", parentID), f.otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, float64(1), detail["reply_count"])
	assert.Equal(t, float64(0), detail["like_count"])
	replies := detail["replies"].([]interface{})
	require.Len(t, replies, 1)
	assert.Equal(t, "Reply", replies[0].(map[string]interface{})["content"])
}

func TestCommentsController_AuthorOnly(t *testing.T) {
	f := setupCommentFixture(t)
	commentID := f.addComment(t, "Mine")

	t.Run("other users cannot edit", func(t *testing.T) {
		w := f.env.form(http.MethodPut, fmt.Sprintf("/books/comment/edit/%d/", commentID), map[string]string{"content": "Hijacked"}, f.otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, auth.MessageForbidden, decode(t, w)["message"])
	})

	t.Run("other users cannot delete", func(t *testing.T) {
		w := f.env.do(http.MethodDelete, fmt.Sprintf("/books/comment/delete/%d/", commentID), nil, "", f.otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("author edits keep the post date", func(t *testing.T) {
		before, err := f.env.comments.GetComment(commentID)
		require.NoError(t, err)

		w := f.env.form(http.MethodPut, fmt.Sprintf("/books/comment/edit/%d/", commentID), map[string]string{"content": "Edited"}, f.authorToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Edited", decode(t, w)["content"])

		after, err := f.env.comments.GetComment(commentID)
		require.NoError(t, err)
		assert.True(t, before.DatePosted.Equal(after.DatePosted))
	})

	t.Run("author cannot blank the comment", func(t *testing.T) {
		w := f.env.form(http.MethodPut, fmt.Sprintf("/books/comment/edit/%d/", commentID), map[string]string{"content": ""}, f.authorToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Content cannot be empty", decode(t, w)["message"])
	})

	t.Run("missing comment", func(t *testing.T) {
		w := f.env.form(http.MethodPut, "/books/comment/edit/9999/", map[string]string{"content": "x"}, f.authorToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCommentsController_DeleteCascadesToReplies(t *testing.T) {
	f := setupCommentFixture(t)
	parentID := f.addComment(t, "Parent")

	w := f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/reply/%d/", parentID), map[string]string{"content": "Child"}, f.otherToken)
	require.Equal(t, http.StatusCreated, w.Code)
	childID := uint(decode(t, w)["id"].(float64))
	w = f.env.form(http.MethodPost, fmt.Sprintf("/books/comment/reply/%d/", childID), map[string]string{"content": "Grandchild"}, f.authorToken)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, http.StatusOK, f.env.do(http.MethodPost, fmt.Sprintf("/books/comment/like/%d/", childID), nil, "", f.authorToken).Code)

	w = f.env.do(http.MethodDelete, fmt.Sprintf("/books/comment/delete/%d/", parentID), nil, "", f.authorToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Comment deleted successfully", decode(t, w)["message"])

	assert.Equal(t, int64(0), countRows(t, f.env, &entities.Comment{}))
	assert.Equal(t, int64(0), countRows(t, f.env, &entities.CommentLike{}))
}

func TestCommentsController_ToggleLike(t *testing.T) {
	f := setupCommentFixture(t)
	commentID := f.addComment(t, "Likeable")
	likePath := fmt.Sprintf("/books/comment/like/%d/", commentID)
	likesPath := fmt.Sprintf("/books/comment/likes/%d/", commentID)

	w := f.env.do(http.MethodPost, likePath, nil, "", f.otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Comment liked", decode(t, w)["message"])

	w = f.env.get(likesPath, f.authorToken)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["like_count"])
	likes := body["likes"].([]interface{})
	require.Len(t, likes, 1)
	assert.Equal(t, "other", likes[0].(map[string]interface{})["username"])

	w = f.env.do(http.MethodPost, likePath, nil, "", f.otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Comment unliked", decode(t, w)["message"])

	w = f.env.get(likesPath, f.authorToken)
	assert.Equal(t, float64(0), decode(t, w)["like_count"])

	w = f.env.do(http.MethodPost, "/books/comment/like/9999/", nil, "", f.otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
