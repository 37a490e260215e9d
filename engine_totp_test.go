package authd_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	authd "github.com/vantor/authd"
)

var backupCodeForm = regexp.MustCompile(`^[A-Z2-9]{4}-[A-Z2-9]{4}$`)

func TestSetupTOTPProducesEnrollmentMaterial(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("missing secret")
	}
	if !strings.HasPrefix(setup.URI, "otpauth://totp/") {
		t.Fatalf("unexpected URI: %q", setup.URI)
	}
	if !strings.Contains(setup.URI, setup.Secret) {
		t.Fatal("URI must embed the secret")
	}
	if len(setup.BackupCodes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(setup.BackupCodes))
	}
	seen := map[string]bool{}
	for _, code := range setup.BackupCodes {
		if !backupCodeForm.MatchString(code) {
			t.Fatalf("malformed backup code %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate backup code %q", code)
		}
		seen[code] = true
	}

	if _, err := env.engine.SetupTOTP(ctx, user.ID); !errors.Is(err, authd.ErrTOTPAlreadyConfigured) {
		t.Fatalf("second setup: got %v", err)
	}
}

func TestBackupCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	login := authd.LoginRequest{
		ApplicationID:    env.appID,
		Identifier:       testEmail,
		Password:         testPassword,
		SecondFactorCode: setup.BackupCodes[0],
	}
	if _, err := env.engine.Login(ctx, login); err != nil {
		t.Fatalf("Login with backup code: %v", err)
	}
	if _, err := env.engine.Login(ctx, login); !errors.Is(err, authd.ErrWrongSecondFactor) {
		t.Fatalf("expected burned code rejected, got %v", err)
	}

	// The rest of the set stays valid, case-insensitively.
	login.SecondFactorCode = strings.ToLower(setup.BackupCodes[1])
	if _, err := env.engine.Login(ctx, login); err != nil {
		t.Fatalf("Login with second backup code: %v", err)
	}
}

func TestRegenerateBackupCodesInvalidatesOldSet(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	fresh, err := env.engine.RegenerateBackupCodes(ctx, user.ID)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes: %v", err)
	}
	if len(fresh) != 10 {
		t.Fatalf("expected 10 fresh codes, got %d", len(fresh))
	}

	login := authd.LoginRequest{
		ApplicationID:    env.appID,
		Identifier:       testEmail,
		Password:         testPassword,
		SecondFactorCode: setup.BackupCodes[0],
	}
	if _, err := env.engine.Login(ctx, login); !errors.Is(err, authd.ErrWrongSecondFactor) {
		t.Fatalf("expected old code rejected, got %v", err)
	}
	login.SecondFactorCode = fresh[0]
	if _, err := env.engine.Login(ctx, login); err != nil {
		t.Fatalf("Login with fresh code: %v", err)
	}
}

func TestDisableTOTP(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	if _, err := env.engine.SetupTOTP(ctx, user.ID); err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if err := env.engine.DisableTOTP(ctx, user.ID); err != nil {
		t.Fatalf("DisableTOTP: %v", err)
	}

	// Login no longer challenges.
	result := env.login(t)
	if result.SecondFactorRequired {
		t.Fatal("expected no challenge after disable")
	}

	if err := env.engine.DisableTOTP(ctx, user.ID); !errors.Is(err, authd.ErrTOTPNotConfigured) {
		t.Fatalf("second disable: got %v", err)
	}
}
