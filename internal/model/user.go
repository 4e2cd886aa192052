package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a locally stored account. Only the local identity strategy persists users.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the caller resolved from a bearer token. It lives only for the
// duration of one request.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type AuthUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (u AuthUser) Identity() Identity {
	role := u.Role
	if role == "" {
		role = RoleUser
	}

	return Identity{UserID: u.ID, Email: u.Email, Role: role}
}

// Session is an access/refresh credential pair issued by an identity provider.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         AuthUser `json:"user"`
}
