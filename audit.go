package authd

import (
	"context"

	"github.com/vantor/authd/internal/audit"
	"github.com/vantor/authd/snowflake"
)

// Audit event types emitted by the engine.
const (
	AuditLoginSuccess         = "login.success"
	AuditLoginFailure         = "login.failure"
	AuditLoginRateLimited     = "login.rate_limited"
	AuditSecondFactorRequired = "login.second_factor_required"
	AuditSecondFactorSuccess  = "login.second_factor_success"
	AuditSecondFactorFailure  = "login.second_factor_failure"
	AuditRegistration         = "registration"
	AuditTokenRefresh         = "token.refresh"
	AuditLogout               = "logout"
	AuditLogoutAll            = "logout.all"
	AuditTOTPEnabled          = "totp.enabled"
	AuditTOTPDisabled         = "totp.disabled"
	AuditBackupCodesReissued  = "totp.backup_codes_reissued"
	AuditEmailVerification    = "email.verification"
)

// AuditEvent is re-exported so sinks can be written without importing
// the internal package.
type AuditEvent = audit.Event

// AuditSink is the consumer interface for the audit dispatcher.
type AuditSink = audit.Sink

// NewAuditChannelSink returns a sink backed by a buffered channel.
func NewAuditChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

type auditFields struct {
	applicationID snowflake.Snowflake
	userID        snowflake.Snowflake
	tokenID       snowflake.Snowflake
	success       bool
	err           error
	metadata      map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, f auditFields) {
	if e.audit == nil {
		return
	}

	event := audit.Event{
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   f.success,
		Metadata:  f.metadata,
	}
	if f.applicationID != 0 {
		event.ApplicationID = f.applicationID.String()
	}
	if f.userID != 0 {
		event.UserID = f.userID.String()
	}
	if f.tokenID != 0 {
		event.TokenID = f.tokenID.String()
	}
	if f.err != nil {
		event.Error = f.err.Error()
	}

	e.audit.Emit(ctx, event)
}
