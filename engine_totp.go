package authd

import (
	"context"
	"errors"
	"time"

	"github.com/vantor/authd/snowflake"
)

// SetupTOTP enrolls the user's second factor. It returns the secret,
// the otpauth:// enrollment URI and the plain backup codes; none of
// these are retrievable again, so the caller must show them now.
func (e *Engine) SetupTOTP(ctx context.Context, userID snowflake.Snowflake) (*TOTPSetup, error) {
	user, err := e.provider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapProviderErr(err, ErrUserNotFound)
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadyConfigured
	}

	_, secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, internalErr(err)
	}

	plainCodes, err := newBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, internalErr(err)
	}

	now := time.Now()
	record := TOTPRecord{
		ID:        e.ids.Next(),
		UserID:    user.ID,
		Secret:    secret,
		CreatedAt: now,
	}
	codeRecords := e.backupCodeRecords(record.ID, plainCodes, now)

	err = e.provider.InTx(ctx, func(ctx context.Context) error {
		if err := e.provider.CreateTOTP(ctx, record, codeRecords); err != nil {
			return err
		}
		return e.provider.SetTOTPEnabled(ctx, user.ID, true)
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicate) {
			return nil, ErrTOTPAlreadyConfigured
		}
		return nil, internalErr(err)
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, AuditTOTPEnabled, auditFields{
		applicationID: user.ApplicationID,
		userID:        user.ID,
		success:       true,
	})

	return &TOTPSetup{
		Secret:      secret,
		URI:         e.totp.ProvisionURI(secret, user.Email),
		BackupCodes: plainCodes,
	}, nil
}

// DisableTOTP removes the user's second factor, including all backup
// codes.
func (e *Engine) DisableTOTP(ctx context.Context, userID snowflake.Snowflake) error {
	err := e.provider.InTx(ctx, func(ctx context.Context) error {
		if err := e.provider.DeleteTOTP(ctx, userID); err != nil {
			return err
		}
		return e.provider.SetTOTPEnabled(ctx, userID, false)
	})
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return ErrTOTPNotConfigured
		}
		return internalErr(err)
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, AuditTOTPDisabled, auditFields{
		userID:  userID,
		success: true,
	})
	return nil
}

// RegenerateBackupCodes replaces the user's backup codes with a fresh
// set, invalidating every old one, used or not.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID snowflake.Snowflake) ([]string, error) {
	totpRecord, err := e.provider.GetTOTP(ctx, userID)
	if err != nil {
		return nil, mapProviderErr(err, ErrTOTPNotConfigured)
	}

	plainCodes, err := newBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, internalErr(err)
	}
	codeRecords := e.backupCodeRecords(totpRecord.ID, plainCodes, time.Now())

	if err := e.provider.ReplaceBackupCodes(ctx, totpRecord.ID, codeRecords); err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, AuditBackupCodesReissued, auditFields{
		userID:  userID,
		success: true,
	})
	return plainCodes, nil
}

func (e *Engine) backupCodeRecords(totpID snowflake.Snowflake, plainCodes []string, at time.Time) []BackupCodeRecord {
	records := make([]BackupCodeRecord, len(plainCodes))
	for i, code := range plainCodes {
		records[i] = BackupCodeRecord{
			ID:        e.ids.Next(),
			TOTPID:    totpID,
			Code:      code,
			CreatedAt: at,
		}
	}
	return records
}
