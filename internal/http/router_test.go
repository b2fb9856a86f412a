package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/database"
	auditRepo "github.com/theledlead/bookshelf/internal/database/audit"
	"github.com/theledlead/bookshelf/internal/database/books"
	"github.com/theledlead/bookshelf/internal/database/comments"
	"github.com/theledlead/bookshelf/internal/database/ratings"
	"github.com/theledlead/bookshelf/internal/database/views"
	"github.com/theledlead/bookshelf/internal/entities"
	"github.com/theledlead/bookshelf/internal/media"
)

type testEnv struct {
	router    *gin.Engine
	db        *database.Database
	svc       *auth.Service
	audit     *audit.Service
	books     *books.Repository
	comments  *comments.Repository
	ratings   *ratings.Repository
	mediaRoot string
	queue     *fakeQueue
}

// fakeQueue records enqueued tasks instead of running them.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
}

func (q *fakeQueue) Enqueue(task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return "task-1", nil
}

func (q *fakeQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "task-1" {
		return backlite.TaskStatusPending, nil
	}
	return backlite.TaskStatusNotFound, nil
}

func (q *fakeQueue) enqueued() []backlite.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]backlite.Task(nil), q.tasks...)
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	authCfg := config.Auth{
		SessionLifetime: time.Hour,
		TokenExpiry:     time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}
	svc := auth.NewService(db.DB, authCfg)
	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB))
	t.Cleanup(func() {
		auditSvc.Wait()
		db.Close()
	})

	mediaRoot := filepath.Join(dir, "media")
	store, err := media.NewLocalStore(mediaRoot, "/media/")
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		svc:       svc,
		audit:     auditSvc,
		books:     books.NewRepository(db.DB),
		comments:  comments.NewRepository(db.DB),
		ratings:   ratings.NewRepository(db.DB),
		mediaRoot: mediaRoot,
		queue:     &fakeQueue{},
	}

	env.router = NewRouter(RouterConfig{
		Database:       db,
		Books:          env.books,
		Comments:       env.comments,
		Ratings:        env.ratings,
		Views:          views.NewRepository(db.DB),
		Audit:          auditSvc,
		AuthService:    svc,
		SessionManager: auth.NewSessionManager(auth.NewMemoryStore(), authCfg),
		Media:          store,
		MediaRoot:      mediaRoot,
		MediaURLPrefix: "/media/",
		MaxUploadBytes: 1 << 20,
		TaskQueue:      env.queue,
		Version:        "test",
	})
	return env
}

// user creates an account and returns it with a fresh API token.
func (e *testEnv) user(t *testing.T, name string, staff bool) (*entities.User, string) {
	t.Helper()
	u, err := e.svc.CreateUser(auth.NewUser{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
		Staff:    staff,
	})
	require.NoError(t, err)
	token, _, err := e.svc.IssueToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path, token string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, path, nil, "", token)
}

func (e *testEnv) form(method, path string, values map[string]string, token string) *httptest.ResponseRecorder {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return e.do(method, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", token)
}

// upload posts a multipart form. file may be nil.
func (e *testEnv) upload(t *testing.T, method, path string, fields map[string]string, filename string, file []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image_url", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.do(method, path, &buf, mw.FormDataContentType(), token)
}

// createBook uploads a book as the given staff token and returns its id.
func (e *testEnv) createBook(t *testing.T, title, token string) uint {
	t.Helper()
	w := e.upload(t, http.MethodPost, "/books/upload/", map[string]string{"title": title, "content": "content of " + title}, "", nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(t, w)["id"].(float64))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
