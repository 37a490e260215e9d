package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
)

func newRedisTokens(t *testing.T) (*RedisTokens, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokens(NewMemory(), client), mr
}

func TestRedisTokensFlowRoundTrip(t *testing.T) {
	store, _ := newRedisTokens(t)
	ctx := context.Background()
	userID := snowflake.Compose(2, 0, 0, 1)
	tokenID := snowflake.Compose(3, 0, 0, 1)

	record := authd.TokenRecord{
		ID:        tokenID,
		UserID:    userID,
		Kind:      authd.TokenTOTPFlow,
		ExpiresAt: time.Now().Add(5 * time.Minute),
		IPAddress: "203.0.113.9",
	}
	if err := store.CreateToken(ctx, record); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if err := store.CreateToken(ctx, record); !errors.Is(err, authd.ErrProviderDuplicate) {
		t.Fatalf("expected duplicate rejected, got %v", err)
	}

	got, err := store.GetToken(ctx, userID, tokenID, authd.TokenTOTPFlow)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.IPAddress != record.IPAddress || got.ID != record.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.DeleteToken(ctx, userID, tokenID, authd.TokenTOTPFlow); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := store.GetToken(ctx, userID, tokenID, authd.TokenTOTPFlow); !errors.Is(err, authd.ErrProviderNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRedisTokensExpireWithTTL(t *testing.T) {
	store, mr := newRedisTokens(t)
	ctx := context.Background()
	userID := snowflake.Compose(2, 0, 0, 1)
	tokenID := snowflake.Compose(3, 0, 0, 1)

	if err := store.CreateToken(ctx, authd.TokenRecord{
		ID:        tokenID,
		UserID:    userID,
		Kind:      authd.TokenTOTPFlow,
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.GetToken(ctx, userID, tokenID, authd.TokenTOTPFlow); !errors.Is(err, authd.ErrProviderNotFound) {
		t.Fatalf("expected record gone after TTL, got %v", err)
	}
}

func TestRedisTokensRefreshStaysOnInner(t *testing.T) {
	store, mr := newRedisTokens(t)
	ctx := context.Background()
	userID := snowflake.Compose(2, 0, 0, 1)
	tokenID := snowflake.Compose(3, 0, 0, 1)

	if err := store.CreateToken(ctx, authd.TokenRecord{
		ID:        tokenID,
		UserID:    userID,
		Kind:      authd.TokenRefresh,
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if len(mr.Keys()) != 0 {
		t.Fatalf("refresh token leaked into redis: %v", mr.Keys())
	}
	if _, err := store.GetToken(ctx, userID, tokenID, authd.TokenRefresh); err != nil {
		t.Fatalf("GetToken via inner: %v", err)
	}
}

func TestRedisTokensDeleteByUser(t *testing.T) {
	store, _ := newRedisTokens(t)
	ctx := context.Background()
	userID := snowflake.Compose(2, 0, 0, 1)

	records := []authd.TokenRecord{
		{ID: snowflake.Compose(3, 0, 0, 1), UserID: userID, Kind: authd.TokenTOTPFlow, ExpiresAt: time.Now().Add(time.Minute)},
		{ID: snowflake.Compose(3, 0, 0, 2), UserID: userID, Kind: authd.TokenEmailVerification, ExpiresAt: time.Now().Add(time.Hour)},
		{ID: snowflake.Compose(3, 0, 0, 3), UserID: userID, Kind: authd.TokenRefresh, ExpiresAt: time.Now().Add(time.Hour)},
	}
	for _, record := range records {
		if err := store.CreateToken(ctx, record); err != nil {
			t.Fatalf("CreateToken %v: %v", record.Kind, err)
		}
	}

	n, err := store.DeleteTokensByUser(ctx, userID)
	if err != nil {
		t.Fatalf("DeleteTokensByUser: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 tokens deleted across backends, got %d", n)
	}
}
