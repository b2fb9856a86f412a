package entities

import "time"

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email            string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash     string     `gorm:"size:255" json:"-"`
	IsStaff          bool       `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser      bool       `gorm:"not null;default:false" json:"is_superuser"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	FailedLoginCount int        `gorm:"not null;default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user may use content-management and
// reporting endpoints.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// AuthToken is an opaque API token. Only the SHA-256 digest is stored;
// a user may hold one token per login.
type AuthToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	User      User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Digest    string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	TokenKey  string     `gorm:"index;size:8" json:"token_key"` // first characters, for display
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

func (AuthToken) TableName() string {
	return "auth_tokens"
}
