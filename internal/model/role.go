package model

import "time"

// Role represents an RBAC role.
type Role struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleSuperAdmin is the built-in role granted every permission by the migrations.
const RoleSuperAdmin = "super_admin"
