package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theledlead/bookshelf/internal/scheduler"
)

func TestParseViewPath(t *testing.T) {
	tests := []struct {
		raw     string
		want    viewQuery
		wantErr bool
	}{
		{raw: "", want: viewQuery{}},
		{raw: "/", want: viewQuery{}},
		{raw: "/book=3/", want: viewQuery{bookID: 3}},
		{raw: "/year=2023/", want: viewQuery{year: 2023, hasYear: true}},
		{raw: "/year=2023/month=4/", want: viewQuery{year: 2023, month: 4, hasYear: true, hasMonth: true}},
		{raw: "/book=3/year=2023/month=13/", want: viewQuery{bookID: 3, year: 2023, month: 13, hasYear: true, hasMonth: true}},
		{raw: "/month=4/", wantErr: true},
		{raw: "/year=2023/book=3/", wantErr: true},
		{raw: "/year=2023/year=2024/", wantErr: true},
		{raw: "/book=0/", wantErr: true},
		{raw: "/book=abc/", wantErr: true},
		{raw: "/year=/", wantErr: true},
		{raw: "/colour=red/", wantErr: true},
		{raw: "/2023/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseViewPath(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, errMalformedViewPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmin_Access(t *testing.T) {
	env := setupTestEnv(t)
	_, staffToken := env.user(t, "staff", true)
	_, readerToken := env.user(t, "reader", false)

	w := env.get("/tll-admin/", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, MessageAdminNotLoggedIn, decode(t, w)["message"])

	w = env.get("/tll-admin/views/", readerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, MessageAdminForbidden, decode(t, w)["message"])

	w = env.get("/tll-admin/", staffToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "This is the admin dashboard", decode(t, w)["message"])
}

func TestAdmin_Views(t *testing.T) {
	env := setupTestEnv(t)
	staff, staffToken := env.user(t, "staff", true)
	reader, _ := env.user(t, "reader", false)
	dune := env.createBook(t, "Dune", staffToken)
	emma := env.createBook(t, "Emma", staffToken)

	seed := []struct {
		userID, bookID uint
		at             time.Time
	}{
		{staff.ID, dune, time.Date(2023, time.April, 2, 10, 0, 0, 0, time.UTC)},
		{reader.ID, dune, time.Date(2023, time.April, 30, 23, 59, 0, 0, time.UTC)},
		{reader.ID, emma, time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{staff.ID, emma, time.Date(2022, time.December, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, s := range seed {
		_, err := env.books.MarkRead(s.userID, s.bookID, s.at)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		path string
		want map[string]interface{}
	}{
		{"all time", "/tll-admin/views/", map[string]interface{}{"views": float64(4)}},
		{"one book", fmt.Sprintf("/tll-admin/views/book=%d/", dune), map[string]interface{}{"book_id": float64(dune), "views": float64(2)}},
		{"year", "/tll-admin/views/year=2023/", map[string]interface{}{"year": float64(2023), "views": float64(3), "books": float64(2)}},
		{"month", "/tll-admin/views/year=2023/month=4/", map[string]interface{}{
			"year": float64(2023), "month": float64(4), "month_name": "APRIL", "views": float64(2), "books": float64(1),
		}},
		{"book and month", fmt.Sprintf("/tll-admin/views/book=%d/year=2023/month=5/", emma), map[string]interface{}{
			"book_id": float64(emma), "year": float64(2023), "month": float64(5), "month_name": "MAY", "views": float64(1), "books": float64(1),
		}},
		{"empty year", "/tll-admin/views/year=2001/", map[string]interface{}{"year": float64(2001), "views": float64(0), "books": float64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get(tt.path, staffToken)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.want, decode(t, w))
		})
	}
}

func TestAdmin_ViewsRejections(t *testing.T) {
	env := setupTestEnv(t)
	_, staffToken := env.user(t, "staff", true)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantMsg  string
	}{
		{"month out of range", "/tll-admin/views/year=2023/month=13/", http.StatusBadRequest, "Invalid month number"},
		{"month zero", "/tll-admin/views/year=2023/month=0/", http.StatusBadRequest, "Invalid month number"},
		{"year out of range", "/tll-admin/views/year=1200/", http.StatusBadRequest, "Invalid year"},
		{"month without year", "/tll-admin/views/month=4/", http.StatusNotFound, "Not found"},
		{"unknown segment", "/tll-admin/views/colour=red/", http.StatusNotFound, "Not found"},
		{"missing book", "/tll-admin/views/book=999/", http.StatusNotFound, "Book not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get(tt.path, staffToken)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, decode(t, w)["message"])
		})
	}
}

func TestAdmin_AuditEvents(t *testing.T) {
	env := setupTestEnv(t)
	staff, staffToken := env.user(t, "staff", true)
	env.createBook(t, "Dune", staffToken)
	env.createBook(t, "Emma", staffToken)
	env.audit.Wait()

	w := env.get("/tll-admin/audit/?type=book&limit=1", staffToken)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, true, body["has_more"])
	events := body["data"].([]interface{})
	require.Len(t, events, 1)
	event := events[0].(map[string]interface{})
	assert.Equal(t, "book_upload", event["action"])
	assert.Equal(t, float64(staff.ID), event["user_id"])

	w = env.get("/tll-admin/audit/?user_id=abc", staffToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_TaskStatus(t *testing.T) {
	env := setupTestEnv(t)
	_, staffToken := env.user(t, "staff", true)

	w := env.get("/tll-admin/tasks/task-1/", staffToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", decode(t, w)["status"])

	w = env.get("/tll-admin/tasks/nope/", staffToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", decode(t, w)["message"])

	w = env.get("/tll-admin/jobs/", staffToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["jobs"])
}

func TestTasksController_Jobs(t *testing.T) {
	ran := 0
	sched := scheduler.New(scheduler.Job{
		Name:     "noop",
		Schedule: "0 * * * *",
		Run: func(ctx context.Context) error {
			ran++
			return nil
		},
	})
	tc := NewTasksController(nil, sched)

	router := gin.New()
	router.GET("/jobs/", tc.ListJobs)
	router.POST("/jobs/:name/run/", tc.RunJob)
	router.GET("/tasks/:task_id/", tc.GetTaskStatus)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode(t, w)["jobs"].([]interface{})
	require.Len(t, jobs, 1)
	assert.Equal(t, "noop", jobs[0].(map[string]interface{})["name"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/noop/run/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, ran)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/missing/run/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/x/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
