package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/entities"
)

// AccountController serves the account lifecycle endpoints: signup, login,
// logout and password change, plus the staff-only admin login.
type AccountController struct {
	service        *Service
	sessionManager *SessionManager
	audit          *audit.Service
}

// NewAccountController creates a new account controller. The session
// manager and audit service may be nil.
func NewAccountController(service *Service, sessionManager *SessionManager, auditSvc *audit.Service) *AccountController {
	return &AccountController{
		service:        service,
		sessionManager: sessionManager,
		audit:          auditSvc,
	}
}

type signupRequest struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	Password2 string `form:"password2" json:"password2"`
}

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type changePasswordRequest struct {
	OldPassword  string `form:"old_password" json:"old_password"`
	NewPassword1 string `form:"new_password1" json:"new_password1"`
	NewPassword2 string `form:"new_password2" json:"new_password2"`
}

func userPayload(u *entities.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username, "email": u.Email}
}

func respond(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func internalError(c *gin.Context, msg string, err error) {
	zap.L().Error(msg, zap.Error(err))
	respond(c, http.StatusInternalServerError, "internal server error")
}

// Signup registers an account and returns a fresh token.
func (ac *AccountController) Signup(c *gin.Context) {
	var req signupRequest
	_ = c.ShouldBind(&req)

	if req.Username == "" || req.Email == "" || req.Password == "" || req.Password2 == "" {
		respond(c, http.StatusBadRequest, "Username, email, and both password fields are required")
		return
	}

	if err := ac.service.CheckAvailable(req.Username, req.Email); err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			respond(c, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, ErrEmailTaken):
			respond(c, http.StatusBadRequest, "Email already exists")
		default:
			internalError(c, "signup availability check failed", err)
		}
		return
	}

	if req.Password != req.Password2 {
		respond(c, http.StatusBadRequest, "Passwords do not match")
		return
	}

	user, err := ac.service.CreateUser(NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if msg, ok := ac.accountErrorMessage(err); ok {
			respond(c, http.StatusBadRequest, msg)
			return
		}
		internalError(c, "signup failed", err)
		return
	}

	token, _, err := ac.service.IssueToken(user.ID)
	if err != nil {
		internalError(c, "token issue failed", err)
		return
	}

	if ac.audit != nil {
		ac.audit.LogAccount(user.ID, "signup", "Registered account: "+user.Username)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    userPayload(user),
		"token":   token,
	})
}

// accountErrorMessage maps validation errors from the service to client
// messages.
func (ac *AccountController) accountErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return "Username already exists", true
	case errors.Is(err, ErrEmailTaken):
		return "Email already exists", true
	case errors.Is(err, ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", ac.service.MinPasswordLength()), true
	case errors.Is(err, ErrPasswordTooLong):
		return "Password exceeds maximum length of 72 characters", true
	case errors.Is(err, ErrUsernameInvalid):
		return "Username may only contain letters, digits and @.+-_ (max 150)", true
	case errors.Is(err, ErrEmailInvalid):
		return "Invalid email format", true
	}
	return "", false
}

// Login verifies credentials, starts a cookie session and returns a token.
// Failed attempts count towards the rate limiter wired in front of it.
func (ac *AccountController) Login(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		_ = c.ShouldBind(&req)

		if req.Username == "" {
			respond(c, http.StatusBadRequest, "Username is required")
			return
		}
		if _, err := ac.service.GetUserByUsername(req.Username); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				respond(c, http.StatusNotFound, "User does not exist")
				return
			}
			internalError(c, "login lookup failed", err)
			return
		}
		if req.Password == "" {
			respond(c, http.StatusBadRequest, "Password is required")
			return
		}

		clientIP := c.ClientIP()
		user, err := ac.service.Authenticate(req.Username, req.Password)
		if err != nil {
			if rl != nil {
				rl.RecordFailure(clientIP, req.Username)
			}
			if ac.audit != nil {
				ac.audit.LogAuth(0, "login_failed", clientIP, c.Request.UserAgent(), false)
			}
			reason := "Invalid username or password"
			switch {
			case errors.Is(err, ErrAccountLocked):
				reason = "Account is locked. Please try again later."
			case !errors.Is(err, ErrInvalidPassword):
				internalError(c, "login failed", err)
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Login failed", "error": reason})
			return
		}

		if rl != nil {
			rl.RecordSuccess(clientIP, req.Username)
		}

		if ac.sessionManager != nil {
			if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
				internalError(c, "session create failed", err)
				return
			}
		}

		token, _, err := ac.service.IssueToken(user.ID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Login failed", "error": err.Error()})
			return
		}

		if ac.audit != nil {
			ac.audit.LogAuth(user.ID, "login", clientIP, c.Request.UserAgent(), true)
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Login successful",
			"user":     userPayload(user),
			"is_admin": user.IsSuperuser,
			"token":    token,
		})
	}
}

// Logout revokes the token the request came with and ends the session.
func (ac *AccountController) Logout(c *gin.Context) {
	if token := GetToken(c); token != "" {
		if err := ac.service.RevokeToken(token); err != nil && !errors.Is(err, ErrInvalidToken) {
			internalError(c, "token revoke failed", err)
			return
		}
	}
	ac.endSession(c)

	if ac.audit != nil {
		ac.audit.LogAuth(GetUserID(c), "logout", c.ClientIP(), c.Request.UserAgent(), true)
	}
	respond(c, http.StatusOK, "Logout successful")
}

// LogoutAll revokes every token of the caller and ends the session.
func (ac *AccountController) LogoutAll(c *gin.Context) {
	userID := GetUserID(c)
	n, err := ac.service.RevokeAllTokens(userID)
	if err != nil {
		internalError(c, "token revoke failed", err)
		return
	}
	ac.endSession(c)

	if ac.audit != nil {
		ac.audit.LogAuth(userID, "logout_all", c.ClientIP(), c.Request.UserAgent(), true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful", "tokens_revoked": n})
}

func (ac *AccountController) endSession(c *gin.Context) {
	if ac.sessionManager == nil {
		return
	}
	if err := ac.sessionManager.DestroySession(c.Request); err != nil {
		zap.L().Warn("session destroy failed", zap.Error(err))
	}
}

// ChangePassword replaces the caller's password after checking the old one.
func (ac *AccountController) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	_ = c.ShouldBind(&req)

	switch {
	case req.OldPassword == "":
		respond(c, http.StatusBadRequest, "Old password is required")
		return
	case req.NewPassword1 == "":
		respond(c, http.StatusBadRequest, "New password is required")
		return
	case req.NewPassword2 == "":
		respond(c, http.StatusBadRequest, "Confirm password is required")
		return
	case req.NewPassword1 != req.NewPassword2:
		respond(c, http.StatusBadRequest, "New password and confirm password do not match")
		return
	}

	userID := GetUserID(c)
	if err := ac.service.ChangePassword(userID, req.OldPassword, req.NewPassword1); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPassword):
			respond(c, http.StatusBadRequest, "Old password is incorrect")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			msg, _ := ac.accountErrorMessage(err)
			respond(c, http.StatusBadRequest, msg)
		default:
			internalError(c, "password change failed", err)
		}
		return
	}

	// keep the current session valid under a fresh id
	if ac.sessionManager != nil && GetAuthType(c) == AuthTypeSession {
		if err := ac.sessionManager.RenewToken(c.Request.Context()); err != nil {
			zap.L().Warn("session renew failed", zap.Error(err))
		}
	}

	if ac.audit != nil {
		ac.audit.LogAccount(userID, "password_change", "Password changed")
	}
	respond(c, http.StatusOK, "Password changed successfully")
}

// AdminLogin starts a cookie session for staff users only.
func (ac *AccountController) AdminLogin(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			respond(c, http.StatusBadRequest, "Already logged in")
			return
		}

		var req loginRequest
		_ = c.ShouldBind(&req)

		if _, err := ac.service.GetUserByUsername(req.Username); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				respond(c, http.StatusNotFound, "User does not exist")
				return
			}
			internalError(c, "admin login lookup failed", err)
			return
		}

		clientIP := c.ClientIP()
		user, err := ac.service.Authenticate(req.Username, req.Password)
		if err != nil && !errors.Is(err, ErrInvalidPassword) && !errors.Is(err, ErrAccountLocked) {
			internalError(c, "admin login failed", err)
			return
		}
		if err != nil || !user.IsAdmin() {
			if rl != nil && err != nil {
				rl.RecordFailure(clientIP, req.Username)
			}
			if ac.audit != nil {
				ac.audit.LogAuth(0, "admin_login_failed", clientIP, c.Request.UserAgent(), false)
			}
			respond(c, http.StatusUnauthorized, "Admin Login failed")
			return
		}

		if rl != nil {
			rl.RecordSuccess(clientIP, req.Username)
		}
		if ac.sessionManager != nil {
			if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
				internalError(c, "session create failed", err)
				return
			}
		}
		if ac.audit != nil {
			ac.audit.LogAuth(user.ID, "admin_login", clientIP, c.Request.UserAgent(), true)
		}
		respond(c, http.StatusOK, "Admin Login successful")
	}
}
