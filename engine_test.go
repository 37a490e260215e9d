package authd_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/stores"
)

const (
	testPassword = "plum-Trombone-94-Quartz"
	testEmail    = "alice@example.com"
	testUsername = "alice"
)

type capturedMail struct {
	to    string
	token string
}

// recordingMailer captures verification mail instead of sending it.
type recordingMailer struct {
	sent []capturedMail
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.sent = append(m.sent, capturedMail{to: to, token: token})
	return nil
}

type testEnv struct {
	engine *authd.Engine
	store  *stores.Memory
	mailer *recordingMailer
	appID  snowflake.Snowflake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := authd.DefaultConfig()
	cfg.Token.Key = []byte("0123456789abcdef0123456789abcdef")
	cfg.Audit.Enabled = false

	store := stores.NewMemory()
	appID := snowflake.Compose(1, 0, 0, 1)
	store.SeedApplication(authd.ApplicationRecord{ID: appID, Name: "test-app"})

	mailer := &recordingMailer{}
	engine, err := authd.NewBuilder().
		WithConfig(cfg).
		WithProvider(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mailer: mailer, appID: appID}
}

func (env *testEnv) register(t *testing.T) authd.UserRecord {
	t.Helper()
	result, err := env.engine.Register(context.Background(), authd.RegistrationRequest{
		ApplicationID: env.appID,
		Email:         testEmail,
		Username:      testUsername,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return result.User
}

func (env *testEnv) login(t *testing.T) *authd.LoginResult {
	t.Helper()
	result, err := env.engine.Login(context.Background(), authd.LoginRequest{
		ApplicationID: env.appID,
		Identifier:    testEmail,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return result
}

// totpCode derives the code an authenticator app would show for the
// secret at the given instant: SHA1, 30s period, 6 digits.
func totpCode(t *testing.T, secretBase32 string, at time.Time) string {
	t.Helper()

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secretBase32)
	if err != nil {
		t.Fatalf("decoding secret: %v", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(at.Unix()/30))
	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%06d", bin%1000000)
}
