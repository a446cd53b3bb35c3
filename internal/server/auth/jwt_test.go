package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/server/models"
)

func TestGenerateAndParse_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	want := models.Principal{UserID: "u1", Email: "tenant@example.com"}

	token, err := GenerateToken(want, secret, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, err := ParsePrincipal(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParsePrincipal_WrongSecret(t *testing.T) {
	token, err := GenerateToken(models.Principal{UserID: "u1"}, []byte("right"), time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = ParsePrincipal(token, []byte("wrong"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestParsePrincipal_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(models.Principal{UserID: "u1"}, secret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = ParsePrincipal(token, secret)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestParsePrincipal_Garbage(t *testing.T) {
	_, err := ParsePrincipal("not-a-token", []byte("s"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
