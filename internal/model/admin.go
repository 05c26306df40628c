package model

import "time"

// Admin is a staff account: an instructor curating courses or an operator.
// What it may do is decided by the permissions of its role.
type Admin struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	RoleID       int       `json:"role_id"`
	RoleName     string    `json:"role_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// AdminLoginResponse carries the token and the permissions baked into it.
type AdminLoginResponse struct {
	Token       string   `json:"token"`
	Admin       Admin    `json:"admin"`
	Permissions []string `json:"permissions"`
}

// AdminProfile is the signed-in admin with the permissions its role grants now,
// which may differ from those in an older token.
type AdminProfile struct {
	Admin       Admin    `json:"admin"`
	Permissions []string `json:"permissions"`
}
