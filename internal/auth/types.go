// Package auth implements JWT authentication for the admin API surface.
package auth

// AuthError is a machine-readable authentication failure
type AuthError struct {
	Code    string
	Message string
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or malformed token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "admin access required"}
)

// UserClaims carries the authenticated identity through a request
type UserClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
