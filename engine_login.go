package authd

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/token"
)

// Login drives the password phase of authentication and either finishes
// it or hands back a second-factor challenge.
//
// The failure order is fixed: unknown application, then unknown user
// (scoped to the application), then ErrWrongCredentials. The last covers
// both a wrong password and an account that has no password credential,
// so the response never discloses which. When the user has TOTP enabled
// and the request carries no code, the result is a short-lived flow
// token instead of a token pair; submit it to CompleteLogin.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	ip := clientIPFromContext(ctx)
	limiterKey := req.ApplicationID.String() + ":" + req.Identifier

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, limiterKey, ip); err != nil {
			return nil, e.loginThrottled(ctx, req, err)
		}
	}

	app, err := e.provider.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return nil, mapProviderErr(err, ErrApplicationNotFound)
	}

	user, err := e.provider.GetUserByIdentifier(ctx, app.ID, req.Identifier)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.loginFailed(ctx, req, limiterKey, 0, ErrUserNotFound)
			return nil, ErrUserNotFound
		}
		return nil, internalErr(err)
	}

	if err := e.checkPassword(user, req.Password); err != nil {
		if errors.Is(err, ErrWrongCredentials) {
			e.loginFailed(ctx, req, limiterKey, user.ID, ErrWrongCredentials)
		}
		return nil, err
	}
	e.maybeUpgradeHash(ctx, user, req.Password)

	if user.TOTPEnabled {
		if req.SecondFactorCode == "" {
			return e.challengeSecondFactor(ctx, app, user)
		}
		if err := e.verifySecondFactor(ctx, user, req.SecondFactorCode); err != nil {
			if errors.Is(err, ErrWrongSecondFactor) {
				e.loginFailed(ctx, req, limiterKey, user.ID, ErrWrongSecondFactor)
			}
			return nil, err
		}
		e.metricInc(MetricSecondFactorSuccess)
	}

	return e.finishLogin(ctx, app, user, limiterKey, ip)
}

// CompleteLogin finishes a second-factor challenge issued by Login. The
// flow token must verify (crypto, expiry, type, binding) and its record
// must still exist. A wrong code leaves the flow token usable for
// another attempt inside its window; only success consumes it.
func (e *Engine) CompleteLogin(ctx context.Context, flowToken, code string) (*LoginResult, error) {
	claims, err := token.VerifyFlow(e.codec, flowToken, token.FlowTOTP, bindingFromContext(ctx))
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, mapTokenErr(err)
	}

	if e.limiter != nil {
		if err := e.limiter.IncrementFlow(ctx, claims.TokenID.String()); err != nil {
			e.metricInc(MetricLoginRateLimited)
			return nil, mapLimiterErr(err)
		}
	}

	if _, err := e.liveToken(ctx, claims.Subject, claims.TokenID, TokenTOTPFlow); err != nil {
		if !errors.Is(err, ErrInternal) {
			e.metricInc(MetricTokenRejected)
		}
		return nil, err
	}

	user, err := e.provider.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, mapProviderErr(err, ErrUserNotFound)
	}

	if err := e.verifySecondFactor(ctx, user, code); err != nil {
		if errors.Is(err, ErrWrongSecondFactor) {
			e.emitAudit(ctx, AuditSecondFactorFailure, auditFields{
				applicationID: user.ApplicationID,
				userID:        user.ID,
				tokenID:       claims.TokenID,
				err:           err,
			})
		}
		return nil, err
	}

	// Consume the challenge. A concurrent completion that got here first
	// already deleted the record; treat that as a replay.
	if err := e.provider.DeleteToken(ctx, claims.Subject, claims.TokenID, TokenTOTPFlow); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, internalErr(err)
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, AuditSecondFactorSuccess, auditFields{
		applicationID: user.ApplicationID,
		userID:        user.ID,
		tokenID:       claims.TokenID,
		success:       true,
	})

	result, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	return result, nil
}

func (e *Engine) checkPassword(user UserRecord, candidate string) error {
	// No credential and wrong password are indistinguishable.
	if user.PasswordHash == "" || candidate == "" {
		return ErrWrongCredentials
	}

	ok, err := e.passwordHash.Verify(candidate, user.PasswordHash)
	if err != nil {
		return internalErr(err)
	}
	if !ok {
		return ErrWrongCredentials
	}
	return nil
}

// maybeUpgradeHash re-hashes after a successful verify when cost
// parameters have been raised. Best-effort: a failure only logs.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user UserRecord, candidate string) {
	upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	rehash, err := e.passwordHash.Hash(candidate)
	if err != nil {
		return
	}
	if err := e.provider.UpdatePasswordHash(ctx, user.ID, rehash); err != nil {
		log.Printf("authd: password upgrade for user %s failed: %v", user.ID, err)
	}
}

func (e *Engine) challengeSecondFactor(ctx context.Context, app ApplicationRecord, user UserRecord) (*LoginResult, error) {
	now := time.Now()
	flowID := e.ids.Next()
	expiresAt := now.Add(e.config.Token.FlowTTL)

	record, err := tokenRecordSpec{
		id:        flowID,
		userID:    user.ID,
		kind:      TokenTOTPFlow,
		expiresAt: expiresAt,
		ipAddress: clientIPFromContext(ctx),
		userAgent: userAgentFromContext(ctx),
	}.build()
	if err != nil {
		return nil, err
	}

	flowToken, err := token.Issue(e.codec, token.Claims[token.FlowPayload]{
		Subject:   user.ID,
		ExpiresAt: expiresAt,
		TokenID:   flowID,
		Data: token.FlowPayload{
			TokenType: token.FlowTOTP,
			DeviceID:  deviceIDFromContext(ctx),
			SessionID: sessionIDFromContext(ctx),
			IPAddress: record.IPAddress,
			UserAgent: record.UserAgent,
		},
	})
	if err != nil {
		return nil, internalErr(err)
	}

	if err := e.provider.CreateToken(ctx, record); err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricSecondFactorRequired)
	e.emitAudit(ctx, AuditSecondFactorRequired, auditFields{
		applicationID: app.ID,
		userID:        user.ID,
		tokenID:       flowID,
		success:       true,
	})

	return &LoginResult{
		SecondFactorRequired: true,
		FlowToken:            flowToken,
	}, nil
}

func (e *Engine) finishLogin(ctx context.Context, app ApplicationRecord, user UserRecord, limiterKey, ip string) (*LoginResult, error) {
	result, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, limiterKey, ip); err != nil {
			log.Printf("authd: resetting login counters for %s failed: %v", limiterKey, err)
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, auditFields{
		applicationID: app.ID,
		userID:        user.ID,
		success:       true,
	})
	return result, nil
}

func (e *Engine) loginThrottled(ctx context.Context, req LoginRequest, err error) error {
	mapped := mapLimiterErr(err)
	if errors.Is(mapped, ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, AuditLoginRateLimited, auditFields{
			applicationID: req.ApplicationID,
			err:           mapped,
			metadata:      map[string]string{"identifier": req.Identifier},
		})
	}
	return mapped
}

func (e *Engine) loginFailed(ctx context.Context, req LoginRequest, limiterKey string, userID snowflake.Snowflake, cause error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLoginFailure, auditFields{
		applicationID: req.ApplicationID,
		userID:        userID,
		err:           cause,
	})
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, limiterKey, clientIPFromContext(ctx)); err != nil {
			log.Printf("authd: recording failed login for %s: %v", limiterKey, err)
		}
	}
}
