package authd_test

import (
	"context"
	"errors"
	"testing"

	authd "github.com/vantor/authd"
	"github.com/vantor/authd/password"
)

func TestRegisterSendsVerificationMail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.engine.Register(ctx, authd.RegistrationRequest{
		ApplicationID: env.appID,
		Email:         testEmail,
		Username:      testUsername,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !result.VerificationSent || len(env.mailer.sent) != 1 {
		t.Fatalf("expected one verification mail, got %+v", env.mailer.sent)
	}
	if env.mailer.sent[0].to != testEmail {
		t.Fatalf("mail sent to %q", env.mailer.sent[0].to)
	}
	if result.User.EmailVerified {
		t.Fatal("address must start unverified")
	}

	if err := env.engine.ConfirmEmailVerification(ctx, env.mailer.sent[0].token); err != nil {
		t.Fatalf("ConfirmEmailVerification: %v", err)
	}
	stored, err := env.store.GetUserByID(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !stored.EmailVerified {
		t.Fatal("expected address verified")
	}

	// The verification token is single-use.
	if err := env.engine.ConfirmEmailVerification(ctx, env.mailer.sent[0].token); !errors.Is(err, authd.ErrTokenRevoked) {
		t.Fatalf("expected replay rejected, got %v", err)
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	_, err := env.engine.Register(context.Background(), authd.RegistrationRequest{
		ApplicationID: env.appID,
		Email:         testEmail,
		Username:      "someone-else",
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	for _, weak := range []string{"short", "password1234", testEmail} {
		_, err := env.engine.Register(context.Background(), authd.RegistrationRequest{
			ApplicationID: env.appID,
			Email:         testEmail,
			Username:      testUsername,
			Password:      weak,
		})
		if !errors.Is(err, authd.ErrInvalidInput) {
			t.Fatalf("password %q: expected ErrInvalidInput, got %v", weak, err)
		}
	}
}

func TestRegisterRejectsMalformedEmail(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Register(context.Background(), authd.RegistrationRequest{
		ApplicationID: env.appID,
		Email:         "not an email",
		Username:      testUsername,
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, err = env.engine.Register(context.Background(), authd.RegistrationRequest{
		ApplicationID: env.appID,
		Username:      testUsername,
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestRegisterHonorsApplicationPolicy(t *testing.T) {
	env := newTestEnv(t)

	strict := password.DefaultRequirements()
	strict.MinLength = 40
	app := authd.ApplicationRecord{
		ID:             env.appID,
		Name:           "strict-app",
		PasswordPolicy: &strict,
	}
	env.store.SeedApplication(app)

	_, err := env.engine.Register(context.Background(), authd.RegistrationRequest{
		ApplicationID: env.appID,
		Email:         testEmail,
		Username:      testUsername,
		Password:      testPassword,
	})
	if !errors.Is(err, authd.ErrInvalidInput) {
		t.Fatalf("expected tenant policy enforced, got %v", err)
	}
}
