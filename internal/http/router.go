package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/logging"
)

// hstsMaxAge is one year, sent only when cookies are HTTPS-only.
const hstsMaxAge = 31536000

// NewRouter creates and configures the HTTP router with all endpoints.
//
// Middleware runs in a fixed order so every route evaluates its checks the
// same way: the caller is identified first, then route guards reject
// anonymous callers (401) before callers without the staff role (403).
// Handlers then answer 404 for missing entities before validating the
// payload (400).
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinLogger())
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}
	if cfg.RequestLimiter != nil {
		router.Use(cfg.RequestLimiter.Middleware())
	}
	if cfg.ReadOnly != nil {
		router.Use(cfg.ReadOnly.Handler())
	}

	mw := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}
	router.Use(mw.Authenticate())
	// CSRF needs to know how the caller authenticated
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	if cfg.MediaRoot != "" {
		prefix := strings.TrimSuffix(cfg.MediaURLPrefix, "/")
		if prefix == "" {
			prefix = "/media"
		}
		router.Static(prefix, cfg.MediaRoot)
	}

	var auditReader AuditReader
	if cfg.Audit != nil {
		auditReader = cfg.Audit
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	accounts := auth.NewAccountController(cfg.AuthService, cfg.SessionManager, cfg.Audit)
	booksController := NewBooksController(cfg.Books, cfg.Comments, cfg.Ratings, cfg.Media, cfg.TaskQueue, cfg.Audit, cfg.MaxUploadBytes)
	commentsController := NewCommentsController(cfg.Books, cfg.Comments, cfg.Audit)
	ratingsController := NewRatingsController(cfg.Books, cfg.Ratings)
	adminController := NewAdminController(cfg.Books, cfg.Views, auditReader)
	tasksController := NewTasksController(cfg.TaskQueue, cfg.Jobs)

	router.GET("/", health.Home)
	router.GET("/ping", health.Ping)
	router.GET("/health", health.Status)

	// Account routes
	loginLimit := func(c *gin.Context) { c.Next() }
	if cfg.LoginLimiter != nil {
		loginLimit = cfg.LoginLimiter.RateLimitMiddleware()
	}
	requireAuth := mw.RequireAuth("")
	router.POST("/signup/", accounts.Signup)
	router.POST("/login/", loginLimit, accounts.Login(cfg.LoginLimiter))
	router.POST("/logout/", requireAuth, accounts.Logout)
	router.POST("/logoutall/", requireAuth, accounts.LogoutAll)
	router.POST("/change-password/", requireAuth, accounts.ChangePassword)

	// Books
	requireStaff := mw.RequireStaff("")
	books := router.Group("/books")
	{
		books.GET("/", booksController.ListBooks)
		books.GET("/:id/", booksController.GetBook)
		books.POST("/upload/", requireAuth, requireStaff, booksController.UploadBook)
		books.PATCH("/:id/update/", requireAuth, requireStaff, booksController.UpdateBook)
		books.DELETE("/:id/delete/", requireAuth, requireStaff, booksController.DeleteBook)
		books.POST("/rate/:id/", requireAuth, ratingsController.RateBook)

		comments := books.Group("/comment", requireAuth)
		comments.POST("/add/:book_id/", commentsController.AddComment)
		comments.POST("/reply/:comment_id/", commentsController.ReplyToComment)
		comments.PUT("/edit/:comment_id/", commentsController.EditComment)
		comments.DELETE("/delete/:comment_id/", commentsController.DeleteComment)
		comments.POST("/like/:comment_id/", commentsController.ToggleLike)
		comments.GET("/likes/:comment_id/", commentsController.GetLikes)
		comments.GET("/:comment_id/", commentsController.GetComment)
	}

	// Admin reporting surface
	router.POST("/tll-admin/login/", loginLimit, accounts.AdminLogin(cfg.LoginLimiter))
	admin := router.Group("/tll-admin",
		mw.RequireAuth(MessageAdminNotLoggedIn),
		mw.RequireStaff(MessageAdminForbidden),
	)
	{
		admin.GET("/", adminController.Index)
		admin.GET("/views/*filters", adminController.Views)
		admin.GET("/audit/", adminController.AuditEvents)
		admin.GET("/tasks/:task_id/", tasksController.GetTaskStatus)
		admin.GET("/jobs/", tasksController.ListJobs)
		admin.POST("/jobs/:name/run/", tasksController.RunJob)
	}

	return router
}
