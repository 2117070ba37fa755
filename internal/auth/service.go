package auth

import (
	"crypto-calls-dashboard/config"
)

// Service authenticates the configured admin account. The dashboard has a
// single operator identity; no user table backs it.
type Service struct {
	adminEmail        string
	adminPasswordHash string
	jwtManager        *JWTManager
}

// NewService creates the authentication service
func NewService(cfg config.AuthConfig, jwtManager *JWTManager) *Service {
	return &Service{
		adminEmail:        cfg.AdminEmail,
		adminPasswordHash: cfg.AdminPasswordHash,
		jwtManager:        jwtManager,
	}
}

// LoginResult is returned on a successful login
type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
	Email     string `json:"email"`
}

// Login verifies admin credentials and issues a token
func (s *Service) Login(email, password string) (*LoginResult, error) {
	if email != s.adminEmail || !VerifyPassword(s.adminPasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateToken(UserClaims{Email: email, IsAdmin: true})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: s.jwtManager.TokenDuration(),
		Email:     email,
	}, nil
}
