package auth

import (
	"time"

	"github.com/google/uuid"
)

// Failure types recorded on LoginAttempt.
const (
	FailureWrongPassword   = "wrong_password"
	FailureUserNotFound    = "user_not_found"
	FailureAccountLocked   = "account_locked"
	FailureAccountInactive = "account_inactive"
)

// LoginAttempt - one credential check, used for lockout decisions
type LoginAttempt struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email       string    `json:"email" gorm:"size:255;not null;index"`
	IPAddress   string    `json:"ip_address" gorm:"size:50"`
	UserAgent   string    `json:"user_agent" gorm:"type:text"`
	Successful  bool      `json:"successful" gorm:"default:false"`
	FailureType string    `json:"failure_type" gorm:"size:100"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;index"`
}
