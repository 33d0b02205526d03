// Package authtest provides an in-memory auth.Store for handler and service tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/betforbes/authflow/internal/database"
)

// MemStore mimics the postgres schema: unique emails and referral codes, cascading deletes,
// referrer links cleared when the referrer is deleted.
type MemStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]database.User
	tokens   map[uuid.UUID]database.EmailVerificationToken
	sessions map[uuid.UUID]database.UserSession

	// Err, when set, is returned by every call
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[uuid.UUID]database.User),
		tokens:   make(map[uuid.UUID]database.EmailVerificationToken),
		sessions: make(map[uuid.UUID]database.UserSession),
	}
}

func (m *MemStore) CountUsersByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.userByEmail(email); ok {
		return 1, nil
	}
	return 0, nil
}

func (m *MemStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return database.User{}, m.Err
	}

	for _, u := range m.users {
		if u.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
		if u.ReferralCode == arg.ReferralCode {
			return database.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_referral_code_key"}
		}
	}

	now := time.Now()
	user := database.User{
		ID:           arg.ID,
		Name:         arg.Name,
		Email:        arg.Email,
		Password:     arg.Password,
		Role:         "USER",
		IsActive:     true,
		ReferralCode: arg.ReferralCode,
		ReferredBy:   arg.ReferredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *MemStore) DeleteUserByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}

	user, ok := m.userByEmail(email)
	if !ok {
		return 0, nil
	}
	delete(m.users, user.ID)
	for id, u := range m.users {
		if u.ReferredBy != nil && *u.ReferredBy == user.ID {
			u.ReferredBy = nil
			m.users[id] = u
		}
	}
	for id, t := range m.tokens {
		if t.UserId == user.ID {
			delete(m.tokens, id)
		}
	}
	for id, s := range m.sessions {
		if s.UserId == user.ID {
			delete(m.sessions, id)
		}
	}
	return 1, nil
}

func (m *MemStore) ExistsUserByReferralCode(_ context.Context, referralCode string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, u := range m.users {
		if u.ReferralCode == referralCode {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) GetUserIDByReferralCode(_ context.Context, referralCode string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return uuid.Nil, m.Err
	}
	for _, u := range m.users {
		if u.ReferralCode == referralCode {
			return u.ID, nil
		}
	}
	return uuid.Nil, pgx.ErrNoRows
}

func (m *MemStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return database.User{}, m.Err
	}
	user, ok := m.userByEmail(email)
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *MemStore) MarkUserVerified(_ context.Context, id uuid.UUID) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return database.User{}, m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	user.IsVerified = true
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return user, nil
}

func (m *MemStore) UpdateUserLastLogin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return nil
	}
	now := time.Now()
	user.LastLoginAt = &now
	m.users[id] = user
	return nil
}

func (m *MemStore) CreateEmailVerificationToken(_ context.Context, arg database.CreateEmailVerificationTokenParams) (database.EmailVerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return database.EmailVerificationToken{}, m.Err
	}
	if _, ok := m.users[arg.UserId]; !ok {
		// foreign key violation
		return database.EmailVerificationToken{}, &pgconn.PgError{Code: "23503"}
	}

	token := database.EmailVerificationToken{
		ID:        arg.ID,
		Token:     arg.Token,
		UserId:    arg.UserId,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: time.Now(),
	}
	m.tokens[token.ID] = token
	return token, nil
}

func (m *MemStore) GetEmailVerificationToken(_ context.Context, token string) (database.EmailVerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return database.EmailVerificationToken{}, m.Err
	}
	for _, t := range m.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return database.EmailVerificationToken{}, pgx.ErrNoRows
}

func (m *MemStore) MarkEmailVerificationTokenUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if t, ok := m.tokens[id]; ok {
		t.Used = true
		m.tokens[id] = t
	}
	return nil
}

func (m *MemStore) GetLatestVerificationTokenByEmail(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	user, ok := m.userByEmail(email)
	if !ok {
		return "", pgx.ErrNoRows
	}

	var tokens []database.EmailVerificationToken
	for _, t := range m.tokens {
		if t.UserId == user.ID {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return "", pgx.ErrNoRows
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens[0].Token, nil
}

func (m *MemStore) CreateUserSession(_ context.Context, arg database.CreateUserSessionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sessions[arg.ID] = database.UserSession{
		ID:        arg.ID,
		UserId:    arg.UserId,
		Token:     arg.Token,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *MemStore) IsDatabaseRunning(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return true, nil
}

// User returns the stored user with the given email.
func (m *MemStore) User(email string) (database.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userByEmail(email)
}

// SetUserActive toggles isActive, e.g. to test ACCOUNT_DISABLED.
func (m *MemStore) SetUserActive(email string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.userByEmail(email); ok {
		u.IsActive = active
		m.users[u.ID] = u
	}
}

// ExpireTokens moves every token's expiry into the past.
func (m *MemStore) ExpireTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		t.ExpiresAt = time.Now().Add(-time.Minute)
		m.tokens[id] = t
	}
}

// Sessions counts the sessions of a user.
func (m *MemStore) Sessions(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserId == userID {
			n++
		}
	}
	return n
}

func (m *MemStore) userByEmail(email string) (database.User, bool) {
	for _, u := range m.users {
		if u.Email == email {
			return u, true
		}
	}
	return database.User{}, false
}
