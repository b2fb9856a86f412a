// Package auth provides accounts, authentication and authorization.
//
// Callers authenticate in one of two ways:
//   - an opaque API token sent as "Authorization: Token <t>" (or "Bearer <t>"),
//     issued on signup and on every login; a user may hold many
//   - a session cookie set by the login endpoints, backed by scs
//
// Cookie-authenticated requests are additionally CSRF-checked.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h           # Session duration
//	AUTH_TOKEN_EXPIRY=720h              # API token expiry, 0 disables
//	AUTH_BCRYPT_COST=12                 # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//	AUTH_MIN_PASSWORD_LENGTH=8
//
// # Usage
//
//	svc := auth.NewService(db, cfg.Auth)
//	mw := auth.NewMiddleware(svc, sessions)
//	router.Use(sessions.SessionLoadSave(), mw.Authenticate())
//	router.POST("/books/upload/", mw.RequireAuth(""), mw.RequireStaff(""), upload)
//
// Handlers read the caller with auth.GetUser(c) or auth.GetUserID(c).
package auth
