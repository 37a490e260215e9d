package stores

import (
	"context"
	"strings"
	"sync"
	"time"

	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
)

type memTxKey struct{}

type tokenKey struct {
	userID  snowflake.Snowflake
	tokenID snowflake.Snowflake
	kind    authd.TokenKind
}

type memState struct {
	applications map[snowflake.Snowflake]authd.ApplicationRecord
	users        map[snowflake.Snowflake]authd.UserRecord
	tokens       map[tokenKey]authd.TokenRecord
	totps        map[snowflake.Snowflake]authd.TOTPRecord
	backupCodes  map[snowflake.Snowflake]authd.BackupCodeRecord
}

func newMemState() *memState {
	return &memState{
		applications: map[snowflake.Snowflake]authd.ApplicationRecord{},
		users:        map[snowflake.Snowflake]authd.UserRecord{},
		tokens:       map[tokenKey]authd.TokenRecord{},
		totps:        map[snowflake.Snowflake]authd.TOTPRecord{},
		backupCodes:  map[snowflake.Snowflake]authd.BackupCodeRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.totps {
		c.totps[k] = v
	}
	for k, v := range s.backupCodes {
		c.backupCodes[k] = v
	}
	return c
}

// Memory is an in-process DataProvider. InTx snapshots the whole state
// and restores it when fn fails, so the engine's transactional writes
// behave exactly as they would over a real database.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

// NewMemory returns an empty provider.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

// SeedApplication registers a tenant. Intended for tests and examples.
func (m *Memory) SeedApplication(app authd.ApplicationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.applications[app.ID] = app
}

// InTx runs fn under the provider lock with snapshot rollback. Nested
// transactions join the outer one.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, memTxKey{})); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// run executes fn under the lock unless the ctx already holds it via
// InTx.
func (m *Memory) run(ctx context.Context, fn func(s *memState) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(m.state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *Memory) GetApplication(ctx context.Context, id snowflake.Snowflake) (authd.ApplicationRecord, error) {
	var app authd.ApplicationRecord
	err := m.run(ctx, func(s *memState) error {
		found, ok := s.applications[id]
		if !ok {
			return authd.ErrProviderNotFound
		}
		app = found
		return nil
	})
	return app, err
}

func (m *Memory) GetUserByIdentifier(ctx context.Context, applicationID snowflake.Snowflake, identifier string) (authd.UserRecord, error) {
	var user authd.UserRecord
	needle := strings.ToLower(identifier)
	err := m.run(ctx, func(s *memState) error {
		for _, u := range s.users {
			if u.ApplicationID != applicationID {
				continue
			}
			if strings.ToLower(u.Email) == needle || strings.ToLower(u.Username) == needle {
				user = u
				return nil
			}
		}
		return authd.ErrProviderNotFound
	})
	return user, err
}

func (m *Memory) GetUserByID(ctx context.Context, id snowflake.Snowflake) (authd.UserRecord, error) {
	var user authd.UserRecord
	err := m.run(ctx, func(s *memState) error {
		found, ok := s.users[id]
		if !ok {
			return authd.ErrProviderNotFound
		}
		user = found
		return nil
	})
	return user, err
}

func (m *Memory) CreateUser(ctx context.Context, in authd.CreateUserInput) error {
	return m.run(ctx, func(s *memState) error {
		u := in.User
		for _, existing := range s.users {
			if existing.ApplicationID != u.ApplicationID {
				continue
			}
			if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
				return authd.ErrProviderDuplicate
			}
		}
		s.users[u.ID] = u
		return nil
	})
}

func (m *Memory) UpdatePasswordHash(ctx context.Context, userID snowflake.Snowflake, hash string) error {
	return m.run(ctx, func(s *memState) error {
		u, ok := s.users[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		u.PasswordHash = hash
		s.users[userID] = u
		return nil
	})
}

func (m *Memory) RecordLogin(ctx context.Context, userID snowflake.Snowflake, at time.Time, ip string) error {
	return m.run(ctx, func(s *memState) error {
		u, ok := s.users[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		u.LastLoginAt = at
		u.LastLoginIP = ip
		s.users[userID] = u
		return nil
	})
}

func (m *Memory) MarkEmailVerified(ctx context.Context, userID snowflake.Snowflake) error {
	return m.run(ctx, func(s *memState) error {
		u, ok := s.users[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		u.EmailVerified = true
		s.users[userID] = u
		return nil
	})
}

func (m *Memory) SetTOTPEnabled(ctx context.Context, userID snowflake.Snowflake, enabled bool) error {
	return m.run(ctx, func(s *memState) error {
		u, ok := s.users[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		u.TOTPEnabled = enabled
		s.users[userID] = u
		return nil
	})
}

func (m *Memory) CreateToken(ctx context.Context, record authd.TokenRecord) error {
	return m.run(ctx, func(s *memState) error {
		key := tokenKey{record.UserID, record.ID, record.Kind}
		if _, ok := s.tokens[key]; ok {
			return authd.ErrProviderDuplicate
		}
		s.tokens[key] = record
		return nil
	})
}

func (m *Memory) GetToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind authd.TokenKind) (authd.TokenRecord, error) {
	var record authd.TokenRecord
	err := m.run(ctx, func(s *memState) error {
		found, ok := s.tokens[tokenKey{userID, tokenID, kind}]
		if !ok {
			return authd.ErrProviderNotFound
		}
		record = found
		return nil
	})
	return record, err
}

func (m *Memory) DeleteToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind authd.TokenKind) error {
	return m.run(ctx, func(s *memState) error {
		key := tokenKey{userID, tokenID, kind}
		if _, ok := s.tokens[key]; !ok {
			return authd.ErrProviderNotFound
		}
		delete(s.tokens, key)
		return nil
	})
}

func (m *Memory) DeleteTokensByUser(ctx context.Context, userID snowflake.Snowflake, kinds ...authd.TokenKind) (int, error) {
	deleted := 0
	err := m.run(ctx, func(s *memState) error {
		for key := range s.tokens {
			if key.userID != userID {
				continue
			}
			if len(kinds) > 0 && !containsKind(kinds, key.kind) {
				continue
			}
			delete(s.tokens, key)
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (m *Memory) GetTOTP(ctx context.Context, userID snowflake.Snowflake) (authd.TOTPRecord, error) {
	var record authd.TOTPRecord
	err := m.run(ctx, func(s *memState) error {
		found, ok := s.totps[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		record = found
		return nil
	})
	return record, err
}

func (m *Memory) CreateTOTP(ctx context.Context, record authd.TOTPRecord, codes []authd.BackupCodeRecord) error {
	return m.run(ctx, func(s *memState) error {
		if _, ok := s.totps[record.UserID]; ok {
			return authd.ErrProviderDuplicate
		}
		s.totps[record.UserID] = record
		for _, code := range codes {
			s.backupCodes[code.ID] = code
		}
		return nil
	})
}

func (m *Memory) DeleteTOTP(ctx context.Context, userID snowflake.Snowflake) error {
	return m.run(ctx, func(s *memState) error {
		record, ok := s.totps[userID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		delete(s.totps, userID)
		for id, code := range s.backupCodes {
			if code.TOTPID == record.ID {
				delete(s.backupCodes, id)
			}
		}
		return nil
	})
}

func (m *Memory) GetBackupCodes(ctx context.Context, totpID snowflake.Snowflake) ([]authd.BackupCodeRecord, error) {
	var codes []authd.BackupCodeRecord
	err := m.run(ctx, func(s *memState) error {
		for _, code := range s.backupCodes {
			if code.TOTPID == totpID {
				codes = append(codes, code)
			}
		}
		return nil
	})
	return codes, err
}

func (m *Memory) ExpireBackupCode(ctx context.Context, codeID snowflake.Snowflake) error {
	return m.run(ctx, func(s *memState) error {
		code, ok := s.backupCodes[codeID]
		if !ok {
			return authd.ErrProviderNotFound
		}
		code.Expired = true
		s.backupCodes[codeID] = code
		return nil
	})
}

func (m *Memory) ReplaceBackupCodes(ctx context.Context, totpID snowflake.Snowflake, codes []authd.BackupCodeRecord) error {
	return m.run(ctx, func(s *memState) error {
		for id, code := range s.backupCodes {
			if code.TOTPID == totpID {
				delete(s.backupCodes, id)
			}
		}
		for _, code := range codes {
			s.backupCodes[code.ID] = code
		}
		return nil
	})
}

func containsKind(kinds []authd.TokenKind, kind authd.TokenKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
