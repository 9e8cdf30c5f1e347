package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusSuspended = "SUSPENDED"
)

const (
	RoleStudent   = "student"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User is an EventHub account. The session subject is ID.String().
type User struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email             string     `json:"email" gorm:"uniqueIndex;not null"`
	Password          string     `json:"-" gorm:"not null"`
	FirstName         string     `json:"first_name" gorm:"size:100"`
	LastName          string     `json:"last_name" gorm:"size:100"`
	StudentID         string     `json:"student_id,omitempty" gorm:"size:50"`
	Phone             string     `json:"phone" gorm:"size:20"`
	Role              string     `json:"role" gorm:"size:20;default:'student'"`
	Status            string     `json:"status" gorm:"default:'ACTIVE'"`
	EmailVerified     bool       `json:"email_verified" gorm:"default:false"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	PasswordChangedAt *time.Time `json:"password_changed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
