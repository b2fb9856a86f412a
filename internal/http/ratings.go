package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/database/ratings"
	"github.com/theledlead/bookshelf/internal/entities"
)

const messageInvalidRating = "Rating must be between 1 and 5"

// RatingsController serves the rating upsert.
type RatingsController struct {
	books   BookStore
	ratings RatingStore
}

// NewRatingsController creates a RatingsController.
func NewRatingsController(bookStore BookStore, ratingStore RatingStore) *RatingsController {
	return &RatingsController{books: bookStore, ratings: ratingStore}
}

type ratingForm struct {
	Rating string `form:"rating"`
}

func ratingPayload(r *entities.Rating) gin.H {
	return gin.H{
		"id":     r.ID,
		"rating": r.Value,
		"user":   userSummary(r.User),
	}
}

// readRating accepts the value as a form field or as a JSON number or
// string.
func readRating(c *gin.Context) (int, bool) {
	var raw string
	if c.ContentType() == gin.MIMEJSON {
		var body struct {
			Rating any `json:"rating"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return 0, false
		}
		switch v := body.Rating.(type) {
		case float64:
			if v != float64(int(v)) {
				return 0, false
			}
			return int(v), true
		case string:
			raw = v
		default:
			return 0, false
		}
	} else {
		var form ratingForm
		_ = c.ShouldBind(&form)
		raw = form.Rating
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}

// RateBook handles POST /books/rate/:id/
// The first rating of a book by a user answers 201, later ones overwrite
// it and answer 200.
func (rc *RatingsController) RateBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id", "Book")
	if !ok {
		return
	}
	exists, err := rc.books.Exists(bookID)
	if err != nil {
		respondInternalError(c, err, "book exists")
		return
	}
	if !exists {
		respondNotFound(c, "Book")
		return
	}

	value, ok := readRating(c)
	if !ok || value < entities.MinRating || value > entities.MaxRating {
		respondBadRequest(c, messageInvalidRating)
		return
	}

	rating, created, err := rc.ratings.Upsert(auth.GetUserID(c), bookID, value)
	if err != nil {
		if errors.Is(err, ratings.ErrInvalidRating) {
			respondBadRequest(c, messageInvalidRating)
			return
		}
		respondInternalError(c, err, "save rating")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ratingPayload(rating))
}
