package authd

import (
	"context"
	"errors"
	"time"

	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/token"
)

// IssueEmailVerification mints a fresh verification token for the user
// and, when a Mailer is configured, delivers it. The token is also
// returned so embedding applications can deliver it themselves.
func (e *Engine) IssueEmailVerification(ctx context.Context, userID snowflake.Snowflake) (string, error) {
	user, err := e.provider.GetUserByID(ctx, userID)
	if err != nil {
		return "", mapProviderErr(err, ErrUserNotFound)
	}
	if user.EmailVerified {
		return "", ErrAlreadyExists
	}

	verificationToken, err := e.mintVerification(ctx, user)
	if err != nil {
		return "", err
	}

	if e.mailer != nil {
		if err := e.mailer.SendVerificationEmail(ctx, user.Email, verificationToken); err != nil {
			return "", internalErr(err)
		}
	}
	return verificationToken, nil
}

// ConfirmEmailVerification consumes a verification token and marks the
// user's address verified. The token is single-use: consumption and the
// verified flag commit together.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verificationToken string) error {
	// Verification links get opened from arbitrary clients, so no
	// device binding is enforced here.
	claims, err := token.VerifyFlow(e.codec, verificationToken, token.FlowEmailVerification, token.Binding{})
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return mapTokenErr(err)
	}

	err = e.provider.InTx(ctx, func(ctx context.Context) error {
		if err := e.provider.DeleteToken(ctx, claims.Subject, claims.TokenID, TokenEmailVerification); err != nil {
			return err
		}
		return e.provider.MarkEmailVerified(ctx, claims.Subject)
	})
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrTokenRevoked
		}
		return internalErr(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, AuditEmailVerification, auditFields{
		userID:  claims.Subject,
		tokenID: claims.TokenID,
		success: true,
	})
	return nil
}

// sendVerification mints and delivers a verification token during
// registration. Callers decide whether a failure is fatal.
func (e *Engine) sendVerification(ctx context.Context, user UserRecord) error {
	verificationToken, err := e.mintVerification(ctx, user)
	if err != nil {
		return err
	}
	return e.mailer.SendVerificationEmail(ctx, user.Email, verificationToken)
}

func (e *Engine) mintVerification(ctx context.Context, user UserRecord) (string, error) {
	tokenID := e.ids.Next()
	expiresAt := time.Now().Add(e.config.Token.VerificationTTL)

	record, err := tokenRecordSpec{
		id:        tokenID,
		userID:    user.ID,
		kind:      TokenEmailVerification,
		expiresAt: expiresAt,
		ipAddress: clientIPFromContext(ctx),
		userAgent: userAgentFromContext(ctx),
	}.build()
	if err != nil {
		return "", err
	}

	verificationToken, err := token.Issue(e.codec, token.Claims[token.FlowPayload]{
		Subject:   user.ID,
		ExpiresAt: expiresAt,
		TokenID:   tokenID,
		Data: token.FlowPayload{
			TokenType: token.FlowEmailVerification,
		},
	})
	if err != nil {
		return "", internalErr(err)
	}

	if err := e.provider.CreateToken(ctx, record); err != nil {
		return "", internalErr(err)
	}

	e.metricInc(MetricEmailVerificationIssued)
	return verificationToken, nil
}
