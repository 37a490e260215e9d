package authd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
)

func TestLoginHappyPath(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := authd.WithClientIP(context.Background(), "203.0.113.9")

	result, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.SecondFactorRequired || result.FlowToken != "" {
		t.Fatalf("unexpected second factor challenge: %+v", result)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	identity, err := env.engine.VerifyAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("wrong subject: %v", identity.UserID)
	}

	stored, err := env.store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if stored.LastLoginAt.IsZero() || stored.LastLoginIP != "203.0.113.9" {
		t.Fatalf("login stamp missing: %+v", stored)
	}
}

func TestLoginUsernameIdentifier(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	if _, err := env.engine.Login(context.Background(), authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testUsername,
		Password:      testPassword,
	}); err != nil {
		t.Fatalf("Login by username: %v", err)
	}
}

func TestLoginFailureOrder(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	_, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: snowflake.Compose(99, 0, 0, 1),
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrApplicationNotFound) {
		t.Fatalf("unknown application: got %v", err)
	}

	_, err = env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    "nobody@example.com",
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	_, err = env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      "not-the-password",
	})
	if !errors.Is(err, authd.ErrWrongCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
}

func TestLoginPasswordlessAccountIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// An account without a password credential must fail exactly like a
	// wrong password.
	if err := env.store.CreateUser(ctx, authd.CreateUserInput{User: authd.UserRecord{
		ID:            snowflake.Compose(2, 0, 0, 7),
		ApplicationID: env.appID,
		Email:         "sso@example.com",
		Username:      "sso-only",
	}}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    "sso@example.com",
		Password:      "anything",
	})
	if !errors.Is(err, authd.ErrWrongCredentials) {
		t.Fatalf("expected ErrWrongCredentials, got %v", err)
	}
}

func TestLoginSecondFactorChallenge(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
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
	if !challenge.SecondFactorRequired || challenge.FlowToken == "" {
		t.Fatalf("expected a challenge, got %+v", challenge)
	}
	if challenge.AccessToken != "" || challenge.RefreshToken != "" {
		t.Fatal("challenge must not carry tokens")
	}

	code := totpCode(t, setup.Secret, time.Now())
	result, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, code)
	if err != nil {
		t.Fatalf("CompleteLogin: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected a full token pair after the second factor")
	}

	// The flow token is burned on success.
	if _, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, code); !errors.Is(err, authd.ErrTokenRevoked) {
		t.Fatalf("expected replay rejected, got %v", err)
	}
}

func TestLoginInlineSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	result, err := env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID:    env.appID,
		Identifier:       testEmail,
		Password:         testPassword,
		SecondFactorCode: totpCode(t, setup.Secret, time.Now()),
	})
	if err != nil {
		t.Fatalf("Login with inline code: %v", err)
	}
	if result.SecondFactorRequired || result.AccessToken == "" {
		t.Fatalf("expected direct completion, got %+v", result)
	}

	_, err = env.engine.Login(ctx, authd.LoginRequest{
		ApplicationID:    env.appID,
		Identifier:       testEmail,
		Password:         testPassword,
		SecondFactorCode: "000000",
	})
	if !errors.Is(err, authd.ErrWrongSecondFactor) {
		t.Fatalf("wrong inline code: got %v", err)
	}
}

func TestCompleteLoginWrongCodeKeepsFlowAlive(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
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

	if _, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, "000000"); !errors.Is(err, authd.ErrWrongSecondFactor) {
		t.Fatalf("wrong code: got %v", err)
	}

	// A wrong code must not consume the challenge.
	if _, err := env.engine.CompleteLogin(ctx, challenge.FlowToken, totpCode(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("retry after wrong code: %v", err)
	}
}

func TestCompleteLoginBindingMismatch(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)

	if _, err := env.engine.SetupTOTP(context.Background(), user.ID); err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	issueCtx := authd.WithDeviceID(context.Background(), "device-a")
	challenge, err := env.engine.Login(issueCtx, authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	otherDevice := authd.WithDeviceID(context.Background(), "device-b")
	if _, err := env.engine.CompleteLogin(otherDevice, challenge.FlowToken, "000000"); !errors.Is(err, authd.ErrTokenInvalid) {
		t.Fatalf("expected binding mismatch rejected as invalid, got %v", err)
	}
}

func TestCompleteLoginRejectsUnissuedDeviceBinding(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)

	if _, err := env.engine.SetupTOTP(context.Background(), user.ID); err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	// The challenge carries no device binding; presenting one later
	// must not pass.
	challenge, err := env.engine.Login(context.Background(), authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	withDevice := authd.WithDeviceID(context.Background(), "device-a")
	if _, err := env.engine.CompleteLogin(withDevice, challenge.FlowToken, "000000"); !errors.Is(err, authd.ErrTokenInvalid) {
		t.Fatalf("expected unissued device binding rejected, got %v", err)
	}
}
