package models

import "time"

const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
)

// AdminUser is a back-office account allowed to verify payments and manage applications.
type AdminUser struct {
	AdminID      uint       `gorm:"primaryKey;column:admin_id" json:"admin_id"`
	Name         string     `gorm:"column:name;size:120;not null" json:"name"`
	Email        string     `gorm:"column:email;size:190;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;size:100;not null" json:"-"`
	Role         string     `gorm:"column:role;size:20;not null;default:admin" json:"role"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (AdminUser) TableName() string { return "admin_users" }
