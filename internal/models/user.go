package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a commerce back-office user, mirrored as a CMS admin user.
type User struct {
	ID        string                 `json:"id" gorm:"primaryKey"`
	Email     string                 `json:"email" gorm:"uniqueIndex;not null"`
	FirstName *string                `json:"first_name"`
	LastName  *string                `json:"last_name"`
	Role      UserRole               `json:"role" gorm:"default:member"`
	Metadata  map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	DeletedAt gorm.DeletedAt         `json:"deleted_at" gorm:"index"`
}

type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleMember    UserRole = "member"
	UserRoleDeveloper UserRole = "developer"
)

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = newID("usr")
	}
	return nil
}
