package auth

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerificationToken - hashed email verification token
type EmailVerificationToken struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	TokenHash  string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	Email      string     `json:"email" gorm:"size:255;not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null"`
	Verified   bool       `json:"verified" gorm:"default:false"`
	VerifiedAt *time.Time `json:"verified_at"`
	IPAddress  string     `json:"ip_address" gorm:"size:50"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (t *EmailVerificationToken) Usable(now time.Time) bool {
	return !t.Verified && now.Before(t.ExpiresAt)
}
