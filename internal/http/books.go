package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/theledlead/bookshelf/internal/analytics"
	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/database"
	"github.com/theledlead/bookshelf/internal/database/books"
	"github.com/theledlead/bookshelf/internal/entities"
	"github.com/theledlead/bookshelf/internal/media"
	"github.com/theledlead/bookshelf/internal/tasks"
)

// multipartOverhead is the room left for form fields on top of the image
// size limit.
const multipartOverhead = 1 << 20

// BooksController serves book listing, detail and the staff-only
// content-management endpoints.
type BooksController struct {
	books     BookStore
	comments  CommentStore
	ratings   RatingStore
	media     media.Store
	queue     TaskQueue
	audit     *audit.Service
	maxUpload int64
}

// NewBooksController creates a BooksController. queue and auditSvc may be
// nil.
func NewBooksController(bookStore BookStore, commentStore CommentStore, ratingStore RatingStore, store media.Store, queue TaskQueue, auditSvc *audit.Service, maxUpload int64) *BooksController {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &BooksController{
		books:     bookStore,
		comments:  commentStore,
		ratings:   ratingStore,
		media:     store,
		queue:     queue,
		audit:     auditSvc,
		maxUpload: maxUpload,
	}
}

type bookForm struct {
	Title        string `form:"title" json:"title"`
	Content      string `form:"content" json:"content"`
	ImageURLLink string `form:"image_url_link" json:"image_url_link" binding:"omitempty,url,max=2048"`
}

func userSummary(u entities.User) gin.H {
	return gin.H{"username": u.Username, "email": u.Email}
}

func (bc *BooksController) bookPayload(book *entities.Book) gin.H {
	return gin.H{
		"id":             book.ID,
		"title":          book.Title,
		"image_url":      bc.media.URL(book.ImagePath),
		"image_url_link": book.ImageURLLink,
		"content":        book.Content,
		"date_published": book.DatePublished,
		"published_by":   userSummary(book.PublishedBy),
	}
}

// ListBooks handles GET /books/
func (bc *BooksController) ListBooks(c *gin.Context) {
	list, err := bc.books.ListBooks()
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	ids := make([]uint, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	stats, err := bc.books.GetStatsForBooks(ids)
	if err != nil {
		respondInternalError(c, err, "book stats")
		return
	}

	out := make([]gin.H, 0, len(list))
	for i := range list {
		item := bc.bookPayload(&list[i])
		s := stats[list[i].ID]
		item["average_rating"] = s.AverageRating
		item["total_ratings"] = s.TotalRatings
		item["total_comments"] = s.TotalComments
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// GetBook handles GET /books/:id/
// Authenticated callers get a read-record the first time they open a book.
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Book")
	if !ok {
		return
	}

	book, err := bc.books.GetBook(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	comments, err := bc.comments.GetCommentsForBook(id)
	if err != nil {
		respondInternalError(c, err, "book comments")
		return
	}
	ratings, err := bc.ratings.GetRatingsForBook(id)
	if err != nil {
		respondInternalError(c, err, "book ratings")
		return
	}

	commentItems := make([]gin.H, 0, len(comments))
	for _, cm := range comments {
		commentItems = append(commentItems, commentPayload(&cm))
	}
	values := make([]int, 0, len(ratings))
	ratingItems := make([]gin.H, 0, len(ratings))
	for _, r := range ratings {
		values = append(values, r.Value)
		ratingItems = append(ratingItems, ratingPayload(&r))
	}

	data := bc.bookPayload(book)
	data["comments"] = commentItems
	data["ratings"] = ratingItems
	data["total_comments"] = len(comments)
	data["average_rating"] = analytics.AverageRating(values)

	if userID := auth.GetUserID(c); userID != 0 {
		if _, err := bc.books.MarkRead(userID, id, time.Now()); err != nil {
			respondInternalError(c, err, "mark read")
			return
		}
	}

	c.JSON(http.StatusOK, data)
}

// UploadBook handles POST /books/upload/ (multipart: title, content,
// optional image_url file, optional image_url_link).
func (bc *BooksController) UploadBook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bc.maxUpload+multipartOverhead)

	var form bookForm
	bindErr := c.ShouldBind(&form)
	form.Title = strings.TrimSpace(form.Title)
	form.Content = strings.TrimSpace(form.Content)

	if form.Title == "" || form.Content == "" {
		respondBadRequest(c, "Title or content cannot be empty")
		return
	}
	if bindErr != nil {
		respondFormError(c, bindErr)
		return
	}

	image, filename, ok := bc.readUpload(c)
	if !ok {
		return
	}

	book := &entities.Book{
		Title:         form.Title,
		Content:       form.Content,
		ImageURLLink:  form.ImageURLLink,
		PublishedByID: auth.GetUserID(c),
	}

	if image != nil {
		key := media.CoverKey(book.Title, filename, image.Extension)
		if err := bc.media.Save(c.Request.Context(), key, bytes.NewReader(image.Data), image.ContentType); err != nil {
			respondInternalError(c, err, "save cover")
			return
		}
		book.ImagePath = key
	}

	if err := bc.books.CreateBook(book); err != nil {
		if book.ImagePath != "" {
			bc.deleteCover(c.Request.Context(), book.ImagePath)
		}
		bc.logBook(c, "upload", book, err)
		respondInternalError(c, err, "create book")
		return
	}
	bc.logBook(c, "upload", book, nil)

	if image == nil && book.ImageURLLink != "" {
		bc.enqueueMirror(book)
	}

	respondCreated(c, bc.bookPayload(book))
}

// UpdateBook handles PATCH /books/:id/update/
// Only non-empty fields overwrite stored values.
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Book")
	if !ok {
		return
	}

	existing, err := bc.books.GetBook(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bc.maxUpload+multipartOverhead)
	var form bookForm
	if err := c.ShouldBind(&form); err != nil {
		respondFormError(c, err)
		return
	}

	image, filename, ok := bc.readUpload(c)
	if !ok {
		return
	}

	changes := books.Changes{
		Title:        strings.TrimSpace(form.Title),
		Content:      strings.TrimSpace(form.Content),
		ImageURLLink: form.ImageURLLink,
	}
	if changes.ImageURLLink == existing.ImageURLLink {
		changes.ImageURLLink = ""
	}

	if image != nil {
		title := changes.Title
		if title == "" {
			title = existing.Title
		}
		key := media.CoverKey(title, filename, image.Extension)
		if err := bc.media.Save(c.Request.Context(), key, bytes.NewReader(image.Data), image.ContentType); err != nil {
			respondInternalError(c, err, "save cover")
			return
		}
		changes.ImagePath = key
	}

	if changes.IsEmpty() {
		respondSuccess(c, "Nothing changed")
		return
	}

	book, changed, err := bc.books.UpdateBook(id, changes)
	if err != nil {
		if changes.ImagePath != "" {
			bc.deleteCover(c.Request.Context(), changes.ImagePath)
		}
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Book")
			return
		}
		bc.logBook(c, "update", existing, err)
		respondInternalError(c, err, "update book")
		return
	}
	if !changed {
		respondSuccess(c, "Nothing changed")
		return
	}
	bc.logBook(c, "update", book, nil)

	if changes.ImagePath != "" && existing.ImagePath != "" && existing.ImagePath != changes.ImagePath {
		bc.deleteCover(c.Request.Context(), existing.ImagePath)
	}
	if image == nil && changes.ImageURLLink != "" {
		bc.enqueueMirror(book)
	}

	c.JSON(http.StatusOK, bc.bookPayload(book))
}

// DeleteBook handles DELETE /books/:id/delete/
// Comments, likes, ratings and read-records go with the book.
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Book")
	if !ok {
		return
	}

	book, err := bc.books.DeleteBook(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Book")
			return
		}
		respondInternalError(c, err, "delete book")
		return
	}
	bc.logBook(c, "delete", book, nil)

	if book.ImagePath != "" {
		bc.deleteCover(c.Request.Context(), book.ImagePath)
	}

	respondSuccess(c, "Book deleted successfully")
}

// readUpload returns the validated image_url file, or nil when none was
// sent. It writes the error response itself when ok is false.
func (bc *BooksController) readUpload(c *gin.Context) (*media.Image, string, bool) {
	fh, err := c.FormFile("image_url")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, "", true
		}
		respondFormError(c, err)
		return nil, "", false
	}

	image, err := openImage(fh, bc.maxUpload)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrImageTooLarge):
			respondMessage(c, http.StatusRequestEntityTooLarge, "Image is too large")
		case errors.Is(err, media.ErrUnsupportedType):
			respondMessage(c, http.StatusUnsupportedMediaType, "Image must be a JPEG, PNG, GIF or WebP file")
		case errors.Is(err, media.ErrEmptyImage):
			respondBadRequest(c, "Image cannot be empty")
		default:
			respondInternalError(c, err, "read upload")
		}
		return nil, "", false
	}
	return image, fh.Filename, true
}

func openImage(fh *multipart.FileHeader, maxBytes int64) (*media.Image, error) {
	if fh.Size > maxBytes {
		return nil, media.ErrImageTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return media.ReadImage(f, maxBytes)
}

func respondFormError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		respondBadRequest(c, "Invalid image link")
	case errors.As(err, &maxErr):
		respondMessage(c, http.StatusRequestEntityTooLarge, "Image is too large")
	default:
		respondBadRequest(c, "Invalid form data")
	}
}

func (bc *BooksController) enqueueMirror(book *entities.Book) {
	if bc.queue == nil {
		return
	}
	taskID, err := bc.queue.Enqueue(tasks.MirrorCoverTask{BookID: book.ID, URL: book.ImageURLLink})
	if err != nil {
		zap.L().Warn("failed to enqueue cover mirror",
			zap.Uint("book_id", book.ID),
			zap.Error(err))
		return
	}
	zap.L().Debug("cover mirror enqueued", zap.Uint("book_id", book.ID), zap.String("task_id", taskID))
}

func (bc *BooksController) deleteCover(ctx context.Context, key string) {
	if err := bc.media.Delete(ctx, key); err != nil {
		zap.L().Warn("failed to delete cover", zap.String("key", key), zap.Error(err))
	}
}

func (bc *BooksController) logBook(c *gin.Context, action string, book *entities.Book, err error) {
	if bc.audit == nil {
		return
	}
	bc.audit.LogBook(auth.GetUserID(c), action, book.ID, book.Title, err)
}
