package authd

import (
	"crypto/rand"
	"strings"
)

// Backup codes are the offline fallback for a lost authenticator. They
// render as XXXX-XXXX; the separator is what distinguishes a backup code
// from a numeric TOTP code at login, so the charset never includes '-'.
const (
	backupCodeGroup   = 4
	backupCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// newBackupCodes draws n codes from crypto/rand. The charset drops the
// lookalikes 0/O, 1/I and L so codes survive being read over the phone.
func newBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		raw := make([]byte, 2*backupCodeGroup)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		var b strings.Builder
		b.Grow(2*backupCodeGroup + 1)
		for j, r := range raw {
			if j == backupCodeGroup {
				b.WriteByte('-')
			}
			b.WriteByte(backupCodeCharset[int(r)%len(backupCodeCharset)])
		}
		codes[i] = b.String()
	}
	return codes, nil
}

// canonicalBackupCode normalizes user input before comparison: upper
// case, surrounding space dropped.
func canonicalBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// looksLikeBackupCode routes a submitted second-factor code: anything
// with a separator is treated as a backup code, everything else as TOTP.
func looksLikeBackupCode(code string) bool {
	return strings.Contains(code, "-")
}
