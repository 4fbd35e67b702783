package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/domain"
)

const (
	testSecret = "test-secret-at-least-32-chars-long-for-security"
	testIssuer = "repeet-test"
)

func TestJWTManager_GenerateAndValidate_Success(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, 15*time.Minute)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	validatedID, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if validatedID != userID {
		t.Errorf("expected userID %s, got %s", userID, validatedID)
	}
}

func TestJWTManager_ValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, -1*time.Hour) // Already expired

	token, err := manager.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	_, err = manager.ValidateAccessToken(token)
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expected jwt.ErrTokenExpired, got: %v", err)
	}
}

func TestJWTManager_ValidateAccessToken_InvalidSignature(t *testing.T) {
	t.Parallel()

	manager1 := NewJWTManager(testSecret, testIssuer, 15*time.Minute)
	manager2 := NewJWTManager("different-secret-32-chars-long-for-security!!", testIssuer, 15*time.Minute)

	token, err := manager1.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := manager2.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for invalid signature, got nil")
	}
}

func TestJWTManager_ValidateAccessToken_Malformed(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, 15*time.Minute)

	malformedTokens := []string{
		"not.a.jwt",
		"invalid-token",
		"header.payload", // Missing signature
	}

	for _, token := range malformedTokens {
		if _, err := manager.ValidateAccessToken(token); err == nil {
			t.Errorf("expected error for malformed token %q, got nil", token)
		}
	}
}

func TestJWTManager_ValidateAccessToken_WrongIssuer(t *testing.T) {
	t.Parallel()

	manager1 := NewJWTManager(testSecret, testIssuer, 15*time.Minute)
	manager2 := NewJWTManager(testSecret, "wrong-issuer", 15*time.Minute)

	token, err := manager1.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	_, err = manager2.ValidateAccessToken(token)
	if err == nil {
		t.Fatal("expected error for wrong issuer, got nil")
	}
	if !strings.Contains(err.Error(), "invalid issuer") {
		t.Errorf("expected 'invalid issuer' error, got: %v", err)
	}
}

func TestJWTManager_ValidateAccessToken_EmptyString(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, 15*time.Minute)

	_, err := manager.ValidateAccessToken("")
	if err == nil {
		t.Fatal("expected error for empty token, got nil")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected 'empty' error, got: %v", err)
	}
}

func TestJWTManager_ValidateAccessToken_ReservedSubject(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, 15*time.Minute)

	for _, id := range []uuid.UUID{uuid.Nil, domain.LocalUserID} {
		token, err := manager.GenerateAccessToken(id)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}
		if _, err := manager.ValidateAccessToken(token); err == nil {
			t.Errorf("expected error for reserved subject %s", id)
		}
	}
}

func TestJWTManager_ValidateToken_WrapsUnauthenticated(t *testing.T) {
	t.Parallel()

	manager := NewJWTManager(testSecret, testIssuer, 15*time.Minute)

	_, err := manager.ValidateToken(context.Background(), "invalid-token")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected domain.ErrUnauthenticated, got: %v", err)
	}

	userID := uuid.New()
	token, _ := manager.GenerateAccessToken(userID)
	got, err := manager.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if got != userID {
		t.Errorf("expected userID %s, got %s", userID, got)
	}
}
