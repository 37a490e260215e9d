package authd

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/token"
)

// Refresh exchanges a live refresh token for a new access token. The
// refresh record must still exist and be unexpired; a revoked or
// logged-out token reports ErrTokenRevoked. The refresh token itself
// is not rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := token.Verify[refreshPayload](e.codec, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, mapTokenErr(err)
	}

	if _, err := e.liveToken(ctx, claims.Subject, claims.TokenID, TokenRefresh); err != nil {
		if !errors.Is(err, ErrInternal) {
			e.metricInc(MetricRefreshFailure)
		}
		return nil, err
	}

	accessToken, err := token.Issue(e.codec, token.Claims[accessPayload]{
		Subject:   claims.Subject,
		ExpiresAt: time.Now().Add(e.config.Token.AccessTTL),
		TokenID:   e.ids.Next(),
		Data:      accessPayload{RefreshTokenID: claims.TokenID},
	})
	if err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, AuditTokenRefresh, auditFields{
		userID:  claims.Subject,
		tokenID: claims.TokenID,
		success: true,
	})

	return &LoginResult{AccessToken: accessToken}, nil
}

// Logout revokes the refresh token and with it every access token it
// minted. Logging out an already-revoked token is a no-op.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	claims, err := token.Verify[refreshPayload](e.codec, refreshToken)
	if err != nil {
		return mapTokenErr(err)
	}

	if err := e.provider.DeleteToken(ctx, claims.Subject, claims.TokenID, TokenRefresh); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil
		}
		return internalErr(err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, AuditLogout, auditFields{
		userID:  claims.Subject,
		tokenID: claims.TokenID,
		success: true,
	})
	return nil
}

// LogoutAll revokes every stored token for the user: refresh tokens,
// pending second-factor flows, and outstanding verification tokens.
// Returns the number of records revoked.
func (e *Engine) LogoutAll(ctx context.Context, userID snowflake.Snowflake) (int, error) {
	n, err := e.provider.DeleteTokensByUser(ctx, userID)
	if err != nil {
		return 0, internalErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditLogoutAll, auditFields{
		userID:   userID,
		success:  true,
		metadata: map[string]string{"revoked": strconv.Itoa(n)},
	})
	return n, nil
}
