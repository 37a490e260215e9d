package authd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vantor/authd/internal/audit"
	"github.com/vantor/authd/internal/rate"
	"github.com/vantor/authd/password"
	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/token"
)

// Engine is the authentication core. Build one with a Builder, share it
// across goroutines, and Close it on shutdown to flush audit events.
// All state lives behind the DataProvider and the optional Redis
// limiter; the Engine itself is immutable after Build.
type Engine struct {
	config       Config
	provider     DataProvider
	mailer       Mailer
	ids          *snowflake.Generator
	codec        *token.Codec
	passwordHash *password.Argon2
	totp         *totpManager
	limiter      *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
}

// accessPayload ties an access token to the refresh token that minted
// it. Revoking the refresh record kills the whole pair.
type accessPayload struct {
	RefreshTokenID snowflake.Snowflake `json:"refresh_token_id"`
}

type refreshPayload struct{}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// IDs exposes the engine's snowflake generator so embedding applications
// mint ids from the same sequence space.
func (e *Engine) IDs() *snowflake.Generator {
	return e.ids
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyAccess checks an access token and resolves its subject. Beyond
// the cryptographic and expiry checks, the refresh record that minted
// the token must still exist and be unexpired; a missing record
// reports ErrTokenRevoked.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	claims, err := token.Verify[accessPayload](e.codec, accessToken)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, mapTokenErr(err)
	}

	if _, err := e.liveToken(ctx, claims.Subject, claims.Data.RefreshTokenID, TokenRefresh); err != nil {
		if !errors.Is(err, ErrInternal) {
			e.metricInc(MetricTokenRejected)
		}
		return nil, err
	}

	return &AccessIdentity{
		UserID:         claims.Subject,
		TokenID:        claims.TokenID,
		RefreshTokenID: claims.Data.RefreshTokenID,
		ExpiresAt:      claims.ExpiresAt,
	}, nil
}

// issueTokenPair mints the refresh/access pair and commits the refresh
// record together with the last-login stamp in one transaction.
func (e *Engine) issueTokenPair(ctx context.Context, user UserRecord) (*LoginResult, error) {
	now := time.Now()
	refreshID := e.ids.Next()
	accessID := e.ids.Next()

	record, err := tokenRecordSpec{
		id:        refreshID,
		userID:    user.ID,
		kind:      TokenRefresh,
		expiresAt: now.Add(e.config.Token.RefreshTTL),
		ipAddress: clientIPFromContext(ctx),
		userAgent: userAgentFromContext(ctx),
	}.build()
	if err != nil {
		return nil, err
	}

	refreshToken, err := token.Issue(e.codec, token.Claims[refreshPayload]{
		Subject:   user.ID,
		ExpiresAt: record.ExpiresAt,
		TokenID:   refreshID,
	})
	if err != nil {
		return nil, internalErr(err)
	}

	accessToken, err := token.Issue(e.codec, token.Claims[accessPayload]{
		Subject:   user.ID,
		ExpiresAt: now.Add(e.config.Token.AccessTTL),
		TokenID:   accessID,
		Data:      accessPayload{RefreshTokenID: refreshID},
	})
	if err != nil {
		return nil, internalErr(err)
	}

	err = e.provider.InTx(ctx, func(ctx context.Context) error {
		if err := e.provider.CreateToken(ctx, record); err != nil {
			return err
		}
		return e.provider.RecordLogin(ctx, user.ID, now, record.IPAddress)
	})
	if err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricTokenIssued)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// verifySecondFactor routes a submitted code to TOTP or backup code
// verification. Backup code acceptance expires the code in the same
// transaction.
func (e *Engine) verifySecondFactor(ctx context.Context, user UserRecord, code string) error {
	totpRecord, err := e.provider.GetTOTP(ctx, user.ID)
	if err != nil {
		return mapProviderErr(err, ErrTOTPNotConfigured)
	}

	if looksLikeBackupCode(code) {
		return e.verifyBackupCode(ctx, totpRecord, code)
	}

	secret, err := e.totp.DecodeSecret(totpRecord.Secret)
	if err != nil {
		return internalErr(err)
	}
	ok, _, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return internalErr(err)
	}
	if !ok {
		e.metricInc(MetricSecondFactorFailure)
		return ErrWrongSecondFactor
	}
	return nil
}

func (e *Engine) verifyBackupCode(ctx context.Context, totpRecord TOTPRecord, code string) error {
	canonical := canonicalBackupCode(code)

	err := e.provider.InTx(ctx, func(ctx context.Context) error {
		codes, err := e.provider.GetBackupCodes(ctx, totpRecord.ID)
		if err != nil {
			return err
		}
		for _, candidate := range codes {
			if candidate.Expired || candidate.Code != canonical {
				continue
			}
			// Burn the code inside the same transaction that accepts it.
			return e.provider.ExpireBackupCode(ctx, candidate.ID)
		}
		return ErrWrongSecondFactor
	})
	if err != nil {
		if errors.Is(err, ErrWrongSecondFactor) {
			e.metricInc(MetricBackupCodeFailed)
			return ErrWrongSecondFactor
		}
		return internalErr(err)
	}

	e.metricInc(MetricBackupCodeUsed)
	return nil
}

// liveToken resolves the record behind a cryptographically verified
// token. A missing record means revocation; a record past its own
// expiry is rejected too, which only matters when the record's expiry
// has drifted away from the claim's.
func (e *Engine) liveToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind TokenKind) (TokenRecord, error) {
	record, err := e.provider.GetToken(ctx, userID, tokenID, kind)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return TokenRecord{}, ErrTokenRevoked
		}
		return TokenRecord{}, internalErr(err)
	}
	if time.Now().After(record.ExpiresAt) {
		return TokenRecord{}, ErrTokenExpired
	}
	return record, nil
}

func bindingFromContext(ctx context.Context) token.Binding {
	return token.Binding{
		DeviceID:  deviceIDFromContext(ctx),
		SessionID: sessionIDFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
}

func mapTokenErr(err error) error {
	if errors.Is(err, token.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func mapLimiterErr(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return internalErr(err)
}

func mapProviderErr(err error, notFound error) error {
	switch {
	case errors.Is(err, ErrProviderNotFound):
		return notFound
	case errors.Is(err, ErrProviderDuplicate):
		return ErrAlreadyExists
	default:
		return internalErr(err)
	}
}

func internalErr(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
