package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() Claims {
	return Claims{
		Email: "operador@loja.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "6f1c1f4e-2b1a-4f43-9f3e-1d2c3b4a5e6f",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateToken(t *testing.T) {
	v := NewVerifier(secret, "authenticated")

	sub, email, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims()))
	if err != nil {
		t.Fatal(err)
	}
	if sub != validClaims().Subject || email != "operador@loja.com" {
		t.Fatalf("got %q %q", sub, email)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	v := NewVerifier(secret, "authenticated")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExp := validClaims()
	noExp.ExpiresAt = nil
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"anon"}
	noSub := validClaims()
	noSub.Subject = ""

	tests := map[string]string{
		"wrong secret":   sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"expired":        sign(t, jwt.SigningMethodHS256, []byte(secret), expired),
		"no expiry":      sign(t, jwt.SigningMethodHS256, []byte(secret), noExp),
		"wrong audience": sign(t, jwt.SigningMethodHS256, []byte(secret), wrongAud),
		"no subject":     sign(t, jwt.SigningMethodHS256, []byte(secret), noSub),
		"other method":   sign(t, jwt.SigningMethodHS384, []byte(secret), validClaims()),
		"garbage":        "not.a.token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := v.ValidateToken(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}
