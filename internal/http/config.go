package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/database"
	"github.com/theledlead/bookshelf/internal/media"
	"github.com/theledlead/bookshelf/internal/readonly"
	"github.com/theledlead/bookshelf/internal/scheduler"
)

// TaskQueue hands work to the background queue and reports on it.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// JobRunner exposes the scheduled maintenance jobs.
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) error
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Books    BookStore
	Comments CommentStore
	Ratings  RatingStore
	Views    ViewStore
	Audit    *audit.Service

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	LoginLimiter   *auth.RateLimiter
	CSRFSecret     []byte // empty disables CSRF checks
	SecureCookies  bool

	// Cover storage. MediaRoot is served under MediaURLPrefix when the
	// local backend is in use.
	Media          media.Store
	MediaRoot      string
	MediaURLPrefix string
	MaxUploadBytes int64

	// Background work (optional)
	TaskQueue TaskQueue
	Jobs      JobRunner

	// Per-IP request throttling (optional)
	RequestLimiter *IPRateLimiter

	// Blocks writes during maintenance (optional)
	ReadOnly *readonly.Middleware

	// Application info
	Version string
}
