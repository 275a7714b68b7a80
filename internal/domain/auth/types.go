package auth

import (
	"errors"
	"time"
)

// Role is the single enumerated authority carried by a session token.
type Role string

// RoleAdmin is the only principal type the service supports.
const RoleAdmin Role = "admin"

// Credential is a stored login for an administrator.
type Credential struct {
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claims is the decoded payload of a session token.
type Claims struct {
	Subject   string
	Role      Role
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time
}

// IsAnonymous reports whether no token was presented.
func (p Principal) IsAnonymous() bool {
	return p.Subject == ""
}

// IssuedToken is a freshly minted session token.
type IssuedToken struct {
	Token     string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var (
	// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a token is required but none was presented.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidToken covers malformed, tampered and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is wrapped together with ErrInvalidToken when exp has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrForbidden is returned when a valid principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrCredentialNotFound is returned by stores when a username is unknown.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExists is returned by stores on duplicate usernames.
	ErrCredentialExists = errors.New("credential already exists")
	// ErrWeakPassword rejects new passwords that are too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// MinPasswordLength bounds ChangePassword.
const MinPasswordLength = 8

// expiredTokenError keeps both sentinels reachable through errors.Is.
type expiredTokenError struct{}

func (expiredTokenError) Error() string { return "token has expired" }

func (expiredTokenError) Is(target error) bool {
	return target == ErrInvalidToken || target == ErrTokenExpired
}

// ExpiredToken returns an error matching ErrInvalidToken and ErrTokenExpired.
func ExpiredToken() error {
	return expiredTokenError{}
}
