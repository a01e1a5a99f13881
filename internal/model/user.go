package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDepartment Role = "department"
	RoleCitizen    Role = "citizen"
)

// ParseRole normalizes case and the legacy display spellings
// ("Admin", "Citizen", "Department Official").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "department", "department official", "department_official":
		return RoleDepartment, nil
	case "citizen":
		return RoleCitizen, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the canonical roles. Use ParseRole for
// user input.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDepartment, RoleCitizen:
		return true
	}
	return false
}

type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar,omitempty"`
}

type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	Profile      Profile    `json:"profile"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

type Department struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Request/Response
type RegisterRequest struct {
	Username  string `form:"username" json:"username" binding:"required,min=3,max=50"`
	Email     string `form:"email" json:"email" binding:"required,email"`
	Password  string `form:"password" json:"password" binding:"required,min=6"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

type CreateUserRequest struct {
	Username     string     `json:"username" binding:"required,min=3,max=50"`
	Email        string     `json:"email" binding:"required,email"`
	Password     string     `json:"password" binding:"required,min=6"`
	Role         string     `json:"role" binding:"required"`
	DepartmentID *uuid.UUID `json:"department_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
}

type UpdateRoleRequest struct {
	Role         string     `json:"role" binding:"required"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

type ToggleActiveResponse struct {
	Message  string `json:"message"`
	IsActive bool   `json:"is_active"`
}

type CreateDepartmentRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone string `json:"contact_phone"`
}
