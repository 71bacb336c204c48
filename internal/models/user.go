package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Caller is the resolved identity attached to each request by the auth
// middleware.
type Caller struct {
	UserID string
	Email  string
	Role   Role
}

// Staff reports whether the caller may use admin/staff operations.
func (c Caller) Staff() bool {
	return c.Role == RoleAdmin || c.Role == RoleStaff
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID    string    `bun:"user_id,pk" json:"user_id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	FullName  string    `bun:"full_name,nullzero" json:"full_name,omitempty"`
	Role      Role      `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	AddressID      string `bun:"address_id,pk" json:"address_id"`
	UserID         string `bun:"user_id,notnull" json:"user_id"`
	RecipientName  string `bun:"recipient_name,nullzero" json:"recipient_name,omitempty"`
	RecipientPhone string `bun:"recipient_phone,nullzero" json:"recipient_phone,omitempty"`
	AddressText    string `bun:"address_text,nullzero" json:"address_text,omitempty"`
	District       string `bun:"district,nullzero" json:"district,omitempty"`
	City           string `bun:"city,nullzero" json:"city,omitempty"`
}
