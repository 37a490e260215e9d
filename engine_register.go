package authd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/vantor/authd/password"
)

// Register creates a user inside an application. The password must pass
// the application's policy (or the engine default when the application
// sets none), email and username uniqueness is scoped to the
// application, and a verification mail is sent best-effort when a
// Mailer is configured.
func (e *Engine) Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.IncrementRegistration(ctx, ip); err != nil {
			mapped := mapLimiterErr(err)
			if errors.Is(mapped, ErrRateLimited) {
				e.metricInc(MetricRegistrationRateLimited)
			}
			return nil, mapped
		}
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)

	app, err := e.provider.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return nil, mapProviderErr(err, ErrApplicationNotFound)
	}

	policy := e.config.Password.Requirements
	if app.PasswordPolicy != nil {
		policy = *app.PasswordPolicy
	}
	if violations := password.Validate(req.Password, []string{email, username}, policy); len(violations) > 0 {
		return nil, policyErr(violations)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, internalErr(err)
	}

	user := UserRecord{
		ID:            e.ids.Next(),
		ApplicationID: app.ID,
		Email:         email,
		Username:      username,
		PasswordHash:  hash,
		CreatedAt:     time.Now(),
	}

	err = e.provider.InTx(ctx, func(ctx context.Context) error {
		return e.provider.CreateUser(ctx, CreateUserInput{User: user})
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicate) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, AuditRegistration, auditFields{
				applicationID: app.ID,
				err:           ErrAlreadyExists,
			})
			return nil, ErrAlreadyExists
		}
		return nil, internalErr(err)
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, AuditRegistration, auditFields{
		applicationID: app.ID,
		userID:        user.ID,
		success:       true,
	})

	result := &RegistrationResult{User: user}

	// The account exists either way; verification mail is not allowed to
	// fail the registration.
	if e.mailer != nil {
		if err := e.sendVerification(ctx, user); err != nil {
			log.Printf("authd: verification mail for user %s failed: %v", user.ID, err)
		} else {
			result.VerificationSent = true
		}
	}

	return result, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: email", ErrMissingField)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return trimmed, nil
}

func policyErr(violations []password.Violation) error {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(parts, "; "))
}
