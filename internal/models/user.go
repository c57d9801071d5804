package models

import "time"

// UserRole scopes what a user may do.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleReviewer  UserRole = "REVIEWER"
	RoleCandidate UserRole = "CANDIDATE"
)

// User represents a login credential stored in the users table. Candidate
// users are provisioned when the candidate is first summoned; staff users are
// seeded out of band.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// JWTClaims is the decoded identity the auth middleware stores on the
// request context.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// Edition is one admissions cycle. Editions are resolved independently and
// share no mutable state.
type Edition struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Year int    `db:"year" json:"year"`
}

// Course is a program candidates apply to, optionally scoped to a campus.
type Course struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	CampusID *string `db:"campus_id" json:"campus_id,omitempty"`
}
