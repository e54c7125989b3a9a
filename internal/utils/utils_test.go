package utils

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ann", 5)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := claims.UserID()
	if id != 42 || claims.Name != "ann" {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "ann", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
}

func TestPassword(t *testing.T) {
	if _, err := HashPassword("short", bcrypt.MinCost); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("err = %v", err)
	}
	h, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "correct horse") || VerifyPassword(h, "wrong horse") {
		t.Fatal("verify mismatch")
	}
}
