package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/database/books"
	"github.com/theledlead/bookshelf/internal/database/comments"
	"github.com/theledlead/bookshelf/internal/database/ratings"
	"github.com/theledlead/bookshelf/internal/database/views"
	"github.com/theledlead/bookshelf/internal/http"
	"github.com/theledlead/bookshelf/internal/media"
	"github.com/theledlead/bookshelf/internal/scheduler"
	"github.com/theledlead/bookshelf/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ http.BookStore = (*books.Repository)(nil)
var _ http.CommentStore = (*comments.Repository)(nil)
var _ http.RatingStore = (*ratings.Repository)(nil)
var _ http.ViewStore = (*views.Repository)(nil)
var _ http.AuditReader = (*audit.Service)(nil)

// =============================================================================
// Media
// =============================================================================

var _ media.Store = (*media.LocalStore)(nil)
var _ media.Store = (*media.S3Store)(nil)
var _ tasks.ImageFetcher = (*media.Fetcher)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.JobRunner = (*scheduler.Scheduler)(nil)
var _ tasks.CoverBooks = (*books.Repository)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.TokenPurger = (*auth.Service)(nil)
