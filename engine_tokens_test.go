package authd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authd "github.com/vantor/authd"
)

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	pair := env.login(t)
	ctx := context.Background()

	refreshed, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.AccessToken == pair.AccessToken {
		t.Fatal("expected a fresh access token")
	}

	identity, err := env.engine.VerifyAccess(ctx, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("wrong subject: %v", identity.UserID)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Refresh(context.Background(), "not-a-token"); !errors.Is(err, authd.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestExpiredRefreshRecordRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	pair := env.login(t)
	ctx := context.Background()

	identity, err := env.engine.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}

	// Swap the refresh record for one whose expiry already passed. The
	// claims inside both tokens are untouched, so only the record-side
	// expiry check can reject them.
	if err := env.store.DeleteToken(ctx, identity.UserID, identity.RefreshTokenID, authd.TokenRefresh); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := env.store.CreateToken(ctx, authd.TokenRecord{
		ID:        identity.RefreshTokenID,
		UserID:    identity.UserID,
		Kind:      authd.TokenRefresh,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := env.engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, authd.ErrTokenExpired) {
		t.Fatalf("access over an expired record: got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, authd.ErrTokenExpired) {
		t.Fatalf("refresh over an expired record: got %v", err)
	}
}

func TestLogoutRevokesWholePair(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	pair := env.login(t)
	ctx := context.Background()

	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Both halves die with the refresh record: the access token still
	// verifies cryptographically but its look-aside anchor is gone.
	if _, err := env.engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, authd.ErrTokenRevoked) {
		t.Fatalf("access after logout: got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, authd.ErrTokenRevoked) {
		t.Fatalf("refresh after logout: got %v", err)
	}

	// Logging out twice is a no-op.
	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	first := env.login(t)
	second := env.login(t)
	ctx := context.Background()

	n, err := env.engine.LogoutAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked records, got %d", n)
	}

	for _, pair := range []*authd.LoginResult{first, second} {
		if _, err := env.engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, authd.ErrTokenRevoked) {
			t.Fatalf("access after LogoutAll: got %v", err)
		}
	}
}
