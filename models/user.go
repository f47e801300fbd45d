package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer  = "customer"
	RoleStaff     = "staff"
	RoleSuperuser = "superuser"
)

// User is an account that can log in: a customer, a staff member or a superuser
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"`
	IsStaff      bool           `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser  bool           `gorm:"not null;default:false" json:"is_superuser"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Role returns the highest role the user holds.
func (u User) Role() string {
	switch {
	case u.IsSuperuser:
		return RoleSuperuser
	case u.IsStaff:
		return RoleStaff
	default:
		return RoleCustomer
	}
}

// CanManage reports whether the user may use the staff workflow.
func (u User) CanManage() bool {
	return u.IsStaff || u.IsSuperuser
}
