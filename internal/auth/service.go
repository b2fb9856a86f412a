package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/entities"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrEmailTaken       = errors.New("email already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be at most 150 characters of letters, digits and @.+-_")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// lockoutThreshold is the number of consecutive bad passwords that locks
// an account when the config does not set one.
const lockoutThreshold = 5

var validate = validator.New()

// NewUser is the input for account creation.
type NewUser struct {
	Username  string `validate:"required,max=150,username"`
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required"`
	Staff     bool
	Superuser bool
}

func init() {
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case strings.ContainsRune("@.+-_", r):
			default:
				return false
			}
		}
		return true
	})
}

// Service handles authentication and user management.
type Service struct {
	db     *gorm.DB
	config config.Auth
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

func (s *Service) minPasswordLength() int {
	if s.config.MinPasswordLength > 0 {
		return s.config.MinPasswordLength
	}
	return DefaultMinPasswordLength
}

// MinPasswordLength returns the effective minimum password length.
func (s *Service) MinPasswordLength() int {
	return s.minPasswordLength()
}

// CreateUser validates the input and stores a new account.
func (s *Service) CreateUser(in NewUser) (*entities.User, error) {
	if err := checkNewUser(in); err != nil {
		return nil, err
	}
	if len(in.Password) < s.minPasswordLength() {
		return nil, ErrPasswordTooShort
	}

	if err := s.CheckAvailable(in.Username, in.Email); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		IsStaff:      in.Staff,
		IsSuperuser:  in.Superuser,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// CheckAvailable returns ErrUsernameTaken or ErrEmailTaken when either is
// already registered.
func (s *Service) CheckAvailable(username, email string) error {
	var count int64
	if err := s.db.Model(&entities.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	if err := s.db.Model(&entities.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

// checkNewUser maps validator failures to the package's sentinel errors.
func checkNewUser(in NewUser) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "required" {
			return ErrUsernameRequired
		}
		return ErrUsernameInvalid
	case "Email":
		if fe.Tag() == "required" {
			return ErrEmailRequired
		}
		return ErrEmailInvalid
	default:
		return ErrPasswordRequired
	}
}

// Authenticate validates credentials and returns the user.
// Implements account lockout after too many failed attempts.
func (s *Service) Authenticate(username, password string) (*entities.User, error) {
	user, err := s.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(user)
		return nil, err
	}

	now := time.Now()
	s.db.Model(user).Updates(map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
	user.LastLoginAt = &now

	return user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(user *entities.User) {
	user.FailedLoginCount++

	updates := map[string]any{
		"failed_login_count": user.FailedLoginCount,
	}

	threshold := s.config.MaxLoginAttempts
	if threshold <= 0 {
		threshold = lockoutThreshold
	}
	if user.FailedLoginCount >= threshold {
		lockoutDuration := s.config.LockoutDuration
		if lockoutDuration == 0 {
			lockoutDuration = 30 * time.Minute
		}
		updates["locked_until"] = time.Now().Add(lockoutDuration)
	}

	s.db.Model(user).Updates(updates)
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	err := s.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by exact username.
func (s *Service) GetUserByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// IssueToken creates a new API token for a user. The plaintext is returned
// once; only its digest is persisted.
func (s *Service) IssueToken(userID uint) (string, *entities.AuthToken, error) {
	plaintext, digest, err := GenerateAPIToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &entities.AuthToken{
		UserID:   userID,
		Digest:   digest,
		TokenKey: tokenKey(plaintext),
	}
	if s.config.TokenExpiry > 0 {
		expires := time.Now().Add(s.config.TokenExpiry)
		token.ExpiresAt = &expires
	}

	if err := s.db.Omit("User").Create(token).Error; err != nil {
		return "", nil, fmt.Errorf("failed to save token: %w", err)
	}
	return plaintext, token, nil
}

// ValidateToken checks a plaintext token and returns the associated user.
// Expired tokens are deleted on sight.
func (s *Service) ValidateToken(plaintext string) (*entities.User, error) {
	if plaintext == "" {
		return nil, ErrInvalidToken
	}

	var token entities.AuthToken
	err := s.db.Preload("User").Where("digest = ?", HashToken(plaintext)).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
		s.db.Delete(&entities.AuthToken{}, token.ID)
		return nil, ErrTokenExpired
	}
	if token.User.ID == 0 {
		return nil, ErrInvalidToken
	}

	return &token.User, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(plaintext string) error {
	result := s.db.Where("digest = ?", HashToken(plaintext)).Delete(&entities.AuthToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// RevokeAllTokens deletes every token the user holds and returns how many
// were removed.
func (s *Service) RevokeAllTokens(userID uint) (int64, error) {
	result := s.db.Where("user_id = ?", userID).Delete(&entities.AuthToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeExpiredTokens removes tokens whose expiry has passed.
func (s *Service) PurgeExpiredTokens() (int64, error) {
	result := s.db.Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).Delete(&entities.AuthToken{})
	return result.RowsAffected, result.Error
}

// ChangePassword updates a user's password after verifying the old one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}
	if len(newPassword) < s.minPasswordLength() {
		return ErrPasswordTooShort
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	return s.db.Model(user).Update("password_hash", newHash).Error
}

// GetUserCount returns the number of users in the database.
func (s *Service) GetUserCount() (int64, error) {
	var count int64
	err := s.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}
