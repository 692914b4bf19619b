package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an admin console account created on first sign-in.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"size:320;uniqueIndex:idx_users_email;not null" json:"email"`
	Avatar    string    `json:"avatar"`
	IsAllowed bool      `gorm:"not null;default:false" json:"isAllowed"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName defines the table name for the User model.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the id.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
