package auth

import (
	"errors"
	"testing"
	"time"

	"crypto-calls-dashboard/config"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken(UserClaims{Email: "admin@example.com", IsAdmin: true})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty token")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Expected email admin@example.com, got %s", claims.Email)
	}
	if !claims.IsAdmin {
		t.Error("Expected IsAdmin to round-trip")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := manager.GenerateToken(UserClaims{Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	manager.tokenDuration = -time.Minute

	token, err := manager.GenerateToken(UserClaims{Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	for _, token := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestTokenDuration(t *testing.T) {
	manager := NewJWTManager("test-secret", 2*time.Hour)
	if got := manager.TokenDuration(); got != 7200 {
		t.Errorf("Expected 7200 seconds, got %d", got)
	}

	defaulted := NewJWTManager("test-secret", 0)
	if got := defaulted.TokenDuration(); got != 86400 {
		t.Errorf("Expected 24h default (86400), got %d", got)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3cret-passw0rd")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !VerifyPassword(hash, "s3cret-passw0rd") {
		t.Error("Correct password rejected")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Error("Wrong password accepted")
	}
	if VerifyPassword("not-a-bcrypt-hash", "s3cret-passw0rd") {
		t.Error("Malformed hash accepted")
	}
}

func TestServiceLogin(t *testing.T) {
	hash, err := HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	svc := NewService(config.AuthConfig{
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: hash,
	}, NewJWTManager("test-secret", time.Hour))

	result, err := svc.Login("admin@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.TokenType != "Bearer" || result.Email != "admin@example.com" {
		t.Errorf("Unexpected login result: %+v", result)
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("Expected expires_in 3600, got %d", result.ExpiresIn)
	}

	if _, err := svc.Login("admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login("other@example.com", "admin-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}
