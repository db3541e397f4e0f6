package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/common"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	ownerID := "owner-123"

	tok, err := GenerateToken(ownerID, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := GetOwnerIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetOwnerIDFromToken error: %v", err)
	}
	if got != ownerID {
		t.Fatalf("ownerID mismatch: got %q want %q", got, ownerID)
	}
}

func TestGenerateToken_EmptyOwner(t *testing.T) {
	t.Parallel()

	_, err := GenerateToken("", []byte("k"), time.Hour)
	if !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("expected ErrorValidation, got %v", err)
	}
}

func TestGetOwnerIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetOwnerIDFromToken(tok, secret)
	if err != common.ErrTokenExpired {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestGetOwnerIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetOwnerIDFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetOwnerIDFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := GetOwnerIDFromToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPeekOwnerID(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u3", []byte("server-only"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := PeekOwnerID(tok)
	if err != nil {
		t.Fatalf("PeekOwnerID error: %v", err)
	}
	if got != "u3" {
		t.Fatalf("got %q want u3", got)
	}

	if _, err := PeekOwnerID("garbage"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
