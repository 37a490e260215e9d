package authd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/stores"
)

func newThrottledEnv(t *testing.T, maxLogin, maxFlow int) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authd.DefaultConfig()
	cfg.Token.Key = []byte("0123456789abcdef0123456789abcdef")
	cfg.Audit.Enabled = false
	cfg.RateLimit.MaxLoginAttempts = maxLogin
	cfg.RateLimit.MaxFlowAttempts = maxFlow

	store := stores.NewMemory()
	appID := snowflake.Compose(1, 0, 0, 1)
	store.SeedApplication(authd.ApplicationRecord{ID: appID, Name: "test-app"})

	mailer := &recordingMailer{}
	engine, err := authd.NewBuilder().
		WithConfig(cfg).
		WithProvider(store).
		WithMailer(mailer).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mailer: mailer, appID: appID}
}

func TestLoginThrottledAfterRepeatedFailures(t *testing.T) {
	env := newThrottledEnv(t, 2, 5)
	env.register(t)
	ctx := context.Background()

	bad := authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      "not-the-password",
	}
	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, bad); !errors.Is(err, authd.ErrWrongCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	// The budget is spent; even the right password is refused now.
	_, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSuccessfulLoginResetsBudget(t *testing.T) {
	env := newThrottledEnv(t, 3, 5)
	env.register(t)
	ctx := context.Background()

	bad := authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      "not-the-password",
	}
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, bad); !errors.Is(err, authd.ErrWrongCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	env.login(t)

	// Counters cleared; the full budget is available again.
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, bad); !errors.Is(err, authd.ErrWrongCredentials) {
			t.Fatalf("post-reset attempt %d: got %v", i, err)
		}
	}
}

func TestFlowAttemptBudget(t *testing.T) {
	env := newThrottledEnv(t, 10, 2)
	user := env.register(t)
	ctx := context.Background()

	if _, err := env.engine.SetupTOTP(ctx, user.ID); err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	challenge, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, "000000"); !errors.Is(err, authd.ErrWrongSecondFactor) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
	if _, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, "000000"); !errors.Is(err, authd.ErrRateLimited) {
		t.Fatalf("expected flow budget spent, got %v", err)
	}
}
