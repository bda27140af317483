package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleDonor    UserRole = "donor"
	RoleReceiver UserRole = "receiver"
)

// Location is embedded into users and listings as location_* columns.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address" gorm:"size:500"`
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:255"` // Hidden from JSON
	Role         UserRole  `json:"role" gorm:"type:varchar(20);not null;check:role IN ('donor','receiver')"`
	Location     Location  `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	Phone        *string   `json:"phone,omitempty" gorm:"size:30"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate is a GORM hook that runs before creating a user
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleReceiver
	}
	return nil
}

// IsValidRole checks if the user role is valid
func (u *User) IsValidRole() bool {
	return IsValidRole(u.Role)
}

func (u *User) IsDonor() bool {
	return u.Role == RoleDonor
}

func (u *User) IsReceiver() bool {
	return u.Role == RoleReceiver
}

func IsValidRole(role UserRole) bool {
	switch role {
	case RoleDonor, RoleReceiver:
		return true
	default:
		return false
	}
}

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Role     UserRole `json:"role" binding:"required,oneof=donor receiver"`
	Location Location `json:"location"`
	Phone    *string  `json:"phone"`
}

// LoginRequest represents the sign in payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
