package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

func TestRegister_IssuesTokenPair(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, true)

	user, creds, err := svc.Register(context.Background(), "new@example.com", "New User", "secret")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if user.ID == 0 {
		t.Fatalf("user id not assigned")
	}
	if creds.TokenType != "Bearer" {
		t.Fatalf("token type = %q, want Bearer", creds.TokenType)
	}
	if len(creds.AccessToken) != 80 || len(creds.RefreshToken) != 80 {
		t.Fatalf("token ids must be 80 hex chars, got %d/%d",
			len(creds.AccessToken), len(creds.RefreshToken))
	}
	if creds.ExpiresIn != int64((4380 * time.Hour).Seconds()) {
		t.Fatalf("expires_in = %d", creds.ExpiresIn)
	}

	rt := store.refresh[creds.RefreshToken]
	if rt == nil || rt.AccessTokenID != creds.AccessToken {
		t.Fatalf("refresh token must be bound to the issued access token")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, true)

	if _, _, err := svc.Register(context.Background(), "dup@example.com", "A", "secret"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	_, _, err := svc.Register(context.Background(), "dup@example.com", "B", "secret")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	store := newFakeStore()
	store.addUser("user@example.com", hash)
	svc := newTestService(store, true)

	if _, _, err := svc.Login(context.Background(), "user@example.com", "correct"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "correct"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefreshTokens_RotationIsSingleUse(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	creds, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}

	rotated, err := svc.RefreshTokens(context.Background(), creds.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens error: %v", err)
	}
	if rotated.AccessToken == creds.AccessToken || rotated.RefreshToken == creds.RefreshToken {
		t.Fatalf("rotation must issue a fresh pair")
	}

	// Старая пара отозвана.
	if !store.access[creds.AccessToken].Revoked {
		t.Fatalf("old access token must be revoked after rotation")
	}
	if !store.refresh[creds.RefreshToken].Revoked {
		t.Fatalf("old refresh token must be revoked after rotation")
	}

	// Токен обновления одноразовый.
	_, err = svc.RefreshTokens(context.Background(), creds.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenRevoked) {
		t.Fatalf("second refresh with spent token: expected ErrRefreshTokenRevoked, got %v", err)
	}

	// Новая пара рабочая.
	if _, err := svc.VerifyAccessToken(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token must verify: %v", err)
	}
}

func TestRefreshTokens_Unknown(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, true)

	_, err := svc.RefreshTokens(context.Background(), "deadbeef")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshTokens_Expired(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	creds, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	store.refresh[creds.RefreshToken].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.RefreshTokens(context.Background(), creds.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
}

func TestIssueTokens_ReplacesRefreshTokenOfAccessToken(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	creds, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}

	// У одного токена доступа не может быть двух токенов обновления.
	var count int
	for _, rt := range store.refresh {
		if rt.AccessTokenID == creds.AccessToken {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("refresh tokens per access token = %d, want 1", count)
	}
}

func TestLogout(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	creds, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}

	if err := svc.Logout(context.Background(), creds.AccessToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if _, err := svc.VerifyAccessToken(context.Background(), creds.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("revoked access token must not verify, got %v", err)
	}
	if !store.refresh[creds.RefreshToken].Revoked {
		t.Fatalf("paired refresh token must be revoked on logout")
	}

	if err := svc.Logout(context.Background(), "unknown"); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid, got %v", err)
	}
}

func TestRevokeAllTokens(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	a, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	b, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}

	if err := svc.RevokeAllTokens(context.Background(), user.ID); err != nil {
		t.Fatalf("RevokeAllTokens error: %v", err)
	}

	for _, token := range []string{a.AccessToken, b.AccessToken} {
		if _, err := svc.VerifyAccessToken(context.Background(), token); !errors.Is(err, ErrAccessTokenInvalid) {
			t.Fatalf("token %s must be revoked", token[:8])
		}
	}
	for _, token := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := svc.RefreshTokens(context.Background(), token); !errors.Is(err, ErrRefreshTokenRevoked) {
			t.Fatalf("refresh token %s must be revoked", token[:8])
		}
	}
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("user@example.com", nil)
	svc := newTestService(store, true)

	creds, err := svc.IssueTokens(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueTokens error: %v", err)
	}
	store.access[creds.AccessToken].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.VerifyAccessToken(context.Background(), creds.AccessToken)
	if !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid, got %v", err)
	}
}
