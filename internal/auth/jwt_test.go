package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/fairkeep/internal/models"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	user := models.NewUser("alice@example.com", "Alice", "hash")

	token, err := manager.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Errorf("claims = %+v, want user %s", claims, user.ID)
	}
	if claims.Subject != user.ID || claims.Issuer != issuer {
		t.Errorf("registered claims = %s/%s", claims.Subject, claims.Issuer)
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	user := models.NewUser("alice@example.com", "Alice", "hash")

	expired, err := NewJWTManager("test-secret", -time.Minute).Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	otherSecret, err := NewJWTManager("other-secret", time.Hour).Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user.ID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	sign := func(claims *Claims) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("SignedString failed: %v", err)
		}
		return signed
	}
	expiry := jwt.NewNumericDate(time.Now().Add(time.Hour))
	noExpiry := sign(&Claims{
		UserID:           user.ID,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: user.ID},
	})
	wrongIssuer := sign(&Claims{
		UserID:           user.ID,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", Subject: user.ID, ExpiresAt: expiry},
	})
	wrongSubject := sign(&Claims{
		UserID:           user.ID,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "someone-else", ExpiresAt: expiry},
	})

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"no expiry", noExpiry},
		{"wrong issuer", wrongIssuer},
		{"subject differs from user", wrongSubject},
		{"wrong secret", otherSecret},
		{"none algorithm", unsigned},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Validate(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate = %v, want ErrInvalidToken", err)
			}
		})
	}
}
