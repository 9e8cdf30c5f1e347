package auth

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one session or account security event.
type AuditLog struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Event     string    `json:"event" gorm:"type:varchar(50);not null;index"`
	Subject   string    `json:"subject,omitempty" gorm:"type:varchar(100);index"`
	Success   bool      `json:"success" gorm:"not null"`
	Reason    string    `json:"reason,omitempty" gorm:"type:varchar(255)"`
	IPAddress string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Platform  string    `json:"platform,omitempty" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
