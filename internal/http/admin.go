package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/theledlead/bookshelf/internal/analytics"
	auditRepo "github.com/theledlead/bookshelf/internal/database/audit"
	"github.com/theledlead/bookshelf/internal/database/views"
	"github.com/theledlead/bookshelf/internal/entities"
)

// Admin rejection messages.
const (
	MessageAdminNotLoggedIn = "You are not logged in"
	MessageAdminForbidden   = "You are not authorized to access this page"
)

// AdminController serves the staff-only reporting surface under
// /tll-admin/.
type AdminController struct {
	books BookStore
	views ViewStore
	audit AuditReader
}

// NewAdminController creates an AdminController. auditReader may be nil.
func NewAdminController(bookStore BookStore, viewStore ViewStore, auditReader AuditReader) *AdminController {
	return &AdminController{books: bookStore, views: viewStore, audit: auditReader}
}

// Index handles GET /tll-admin/
func (ac *AdminController) Index(c *gin.Context) {
	respondSuccess(c, "This is the admin dashboard")
}

// viewQuery is a parsed /tll-admin/views/ path.
type viewQuery struct {
	bookID   uint // zero when unset
	year     int
	month    int
	hasYear  bool
	hasMonth bool
}

var errMalformedViewPath = errors.New("malformed view path")

// parseViewPath reads "[book=N/][year=YYYY/[month=M/]]". Segments must
// appear in that order, each at most once; month needs a year. Values only
// have to be integers here, range checks happen later so they can answer
// 400 instead of 404.
func parseViewPath(raw string) (viewQuery, error) {
	var q viewQuery
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return q, nil
	}

	order := []string{"book", "year", "month"}
	next := 0
	for _, seg := range strings.Split(raw, "/") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok || value == "" {
			return q, errMalformedViewPath
		}
		pos := -1
		for i := next; i < len(order); i++ {
			if order[i] == key {
				pos = i
				break
			}
		}
		if pos < 0 {
			return q, errMalformedViewPath
		}
		next = pos + 1

		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return q, errMalformedViewPath
		}
		switch key {
		case "book":
			if n == 0 {
				return q, errMalformedViewPath
			}
			q.bookID = uint(n)
		case "year":
			q.year, q.hasYear = n, true
		case "month":
			if !q.hasYear {
				return q, errMalformedViewPath
			}
			q.month, q.hasMonth = n, true
		}
	}
	return q, nil
}

// Views handles GET /tll-admin/views/*filters
//
//	/tll-admin/views/                          {views}
//	/tll-admin/views/book=3/                   {book_id, views}
//	/tll-admin/views/year=2023/                {year, views, books}
//	/tll-admin/views/year=2023/month=4/        {year, month, month_name, views, books}
//	/tll-admin/views/book=3/year=2023/month=4/ the same plus book_id
func (ac *AdminController) Views(c *gin.Context) {
	q, err := parseViewPath(c.Param("filters"))
	if err != nil {
		respondMessage(c, http.StatusNotFound, "Not found")
		return
	}

	filter := views.Filter{}
	if q.bookID != 0 {
		exists, err := ac.books.Exists(q.bookID)
		if err != nil {
			respondInternalError(c, err, "book exists")
			return
		}
		if !exists {
			respondNotFound(c, "Book")
			return
		}
		filter.BookID = &q.bookID
	}

	data := gin.H{}
	if q.bookID != 0 {
		data["book_id"] = q.bookID
	}

	if !q.hasYear {
		counts, err := ac.views.Count(filter)
		if err != nil {
			respondInternalError(c, err, "count views")
			return
		}
		data["views"] = counts.Views
		c.JSON(http.StatusOK, data)
		return
	}

	var period analytics.Period
	if q.hasMonth {
		period, err = analytics.MonthPeriod(q.year, q.month)
	} else {
		period, err = analytics.YearPeriod(q.year)
	}
	switch {
	case errors.Is(err, analytics.ErrInvalidMonth):
		respondBadRequest(c, "Invalid month number")
		return
	case errors.Is(err, analytics.ErrInvalidYear):
		respondBadRequest(c, "Invalid year")
		return
	case err != nil:
		respondInternalError(c, err, "view period")
		return
	}

	counts, err := ac.views.ForPeriod(period, filter.BookID)
	if err != nil {
		respondInternalError(c, err, "count views")
		return
	}

	data["year"] = q.year
	if q.hasMonth {
		name, _ := analytics.MonthName(q.month)
		data["month"] = q.month
		data["month_name"] = name
	}
	data["views"] = counts.Views
	data["books"] = counts.Books
	c.JSON(http.StatusOK, data)
}

// AuditEvents handles GET /tll-admin/audit/?limit=&offset=&type=&user_id=
func (ac *AdminController) AuditEvents(c *gin.Context) {
	if ac.audit == nil {
		respondMessage(c, http.StatusServiceUnavailable, "Audit log is not available")
		return
	}

	limit, offset := parsePagination(c, 25, 100)
	filter := auditRepo.Filter{
		EventType: entities.AuditEventType(c.Query("type")),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "Invalid user_id")
			return
		}
		filter.UserID = uint(id)
	}

	events, total, err := ac.audit.GetEvents(filter)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
