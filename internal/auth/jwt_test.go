package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("test-secret", "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("expected user id %q, got %q", "user-123", claims.UserID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _ := GenerateAccessToken("secret-a", "user-123")

	if _, err := ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	claims := &Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ivplayer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken("test-secret", token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	claims := &Claims{
		UserID:           "user-123",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	if _, err := ValidateToken("test-secret", token); err == nil {
		t.Fatal("expected error for foreign issuer")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("test-secret", "not-a-token"); err == nil {
		t.Fatal("expected error")
	}
}
