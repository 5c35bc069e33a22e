package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// restoreCodeDelimiter separates the user id from the opaque code in session
// tokens and restore codes.
const restoreCodeDelimiter = "!"

// SessionToken is the (user id, persist code) pair written to the session
// store and, for remember-me logins, to a durable cookie. It is transient:
// server-side only the user's stored persist code backs it.
type SessionToken struct {
	UserID      uuid.UUID
	PersistCode string
}

// Encode renders the token wire form: <id>!<code>.
func (t SessionToken) Encode() string {
	return t.UserID.String() + restoreCodeDelimiter + t.PersistCode
}

// DecodeSessionToken parses the wire form produced by Encode.
func DecodeSessionToken(raw string) (SessionToken, error) {
	id, code, ok := strings.Cut(raw, restoreCodeDelimiter)
	if !ok || code == "" {
		return SessionToken{}, ErrInvalidPersistCode
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return SessionToken{}, ErrInvalidPersistCode
	}

	return SessionToken{UserID: userID, PersistCode: code}, nil
}

// EncodeRestoreCode renders a password restore payload: <id>!<code>.
func EncodeRestoreCode(id uuid.UUID, code string) string {
	return id.String() + restoreCodeDelimiter + code
}

// DecodeRestoreCode parses a password restore payload.
func DecodeRestoreCode(raw string) (uuid.UUID, string, error) {
	id, code, ok := strings.Cut(raw, restoreCodeDelimiter)
	if !ok || code == "" {
		return uuid.Nil, "", ErrInvalidRestoreCode
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, "", ErrInvalidRestoreCode
	}

	return userID, code, nil
}

// SessionUserStore is the slice of the user store the session manager needs.
type SessionUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	SavePersistCode(ctx context.Context, user *User, code string) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// LoginHook runs after a session is established; the default stamps the
// user's last login.
type LoginHook func(ctx context.Context, user *User) error

// SessionManager issues and validates persist-code session tokens.
type SessionManager struct {
	store      SessionUserStore
	sessions   SessionStore
	cookies    CookieJar
	sessionKey string
	cookieAge  time.Duration
	afterLogin LoginHook
	logger     Logger
}

func NewSessionManager(store SessionUserStore, sessions SessionStore, cookies CookieJar, cfg Config) *SessionManager {
	m := &SessionManager{
		store:      store,
		sessions:   sessions,
		cookies:    cookies,
		sessionKey: cfg.GetSessionKey(),
		cookieAge:  cfg.GetRememberCookieMaxAge(),
		logger:     defLogger{},
	}

	m.afterLogin = func(ctx context.Context, user *User) error {
		return store.TrackSuccessfulLogin(ctx, user)
	}

	return m
}

func (m *SessionManager) WithLogger(l Logger) *SessionManager {
	if l != nil {
		m.logger = l
	}
	return m
}

// WithAfterLoginHook replaces the post-login side effect.
func (m *SessionManager) WithAfterLoginHook(hook LoginHook) *SessionManager {
	if hook != nil {
		m.afterLogin = hook
	}
	return m
}

// GetPersistCode returns the user's persist code, generating and persisting
// one on first use. The code is issued exactly once and reused on every
// subsequent login until it is explicitly cleared.
func (m *SessionManager) GetPersistCode(ctx context.Context, user *User) (string, error) {
	if user.PersistCode != "" {
		return user.PersistCode, nil
	}

	code := RandomCode()
	if err := m.store.SavePersistCode(ctx, user, code); err != nil {
		return "", err
	}

	return code, nil
}

// Login writes the session token for the user and, when remember is set,
// queues a far-future cookie with the same pair. The after-login hook fires
// as an observable side effect.
func (m *SessionManager) Login(ctx context.Context, user *User, remember bool) error {
	code, err := m.GetPersistCode(ctx, user)
	if err != nil {
		return err
	}

	token := SessionToken{UserID: user.ID, PersistCode: code}

	if err := m.sessions.Put(ctx, m.sessionKey, token.Encode()); err != nil {
		return err
	}

	if remember {
		if err := m.cookies.Queue(ctx, m.sessionKey, token.Encode(), m.cookieAge); err != nil {
			return err
		}
	}

	if err := m.afterLogin(ctx, user); err != nil {
		m.logger.Warn("after-login hook failed", "user_id", user.ID.String(), "error", err)
	}

	return nil
}

// Validate loads the user referenced by the token and confirms the persist
// code matches the stored one. A missing user and a code mismatch are the
// same invalid outcome.
func (m *SessionManager) Validate(ctx context.Context, token SessionToken) (*User, error) {
	user, err := m.store.GetByID(ctx, token.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidPersistCode
		}
		return nil, err
	}

	if !user.CheckPersistCode(token.PersistCode) {
		return nil, ErrInvalidPersistCode
	}

	return user, nil
}

// Restore recovers the current user from the session store, falling back to
// the remember-me cookie.
func (m *SessionManager) Restore(ctx context.Context) (*User, error) {
	raw, err := m.sessions.Get(ctx, m.sessionKey)
	if err != nil || raw == "" {
		if m.cookies == nil {
			return nil, ErrInvalidPersistCode
		}
		raw, err = m.cookies.Get(ctx, m.sessionKey)
		if err != nil || raw == "" {
			return nil, ErrInvalidPersistCode
		}
	}

	token, err := DecodeSessionToken(raw)
	if err != nil {
		return nil, err
	}

	return m.Validate(ctx, token)
}

// Logout drops the session entry and the remember-me cookie.
func (m *SessionManager) Logout(ctx context.Context) error {
	if err := m.sessions.Forget(ctx, m.sessionKey); err != nil {
		return err
	}

	if m.cookies != nil {
		return m.cookies.Forget(ctx, m.sessionKey)
	}

	return nil
}

// MemorySessionStore is a mutex-guarded in-memory SessionStore, suitable for
// tests and single-process deployments.
type MemorySessionStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: map[string]string{}}
}

func (s *MemorySessionStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemorySessionStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// MemoryCookieJar queues cookies in memory; expiry bookkeeping is kept so
// callers can flush queued cookies into a real response.
type MemoryCookieJar struct {
	mu     sync.RWMutex
	values map[string]queuedCookie
}

type queuedCookie struct {
	value  string
	maxAge time.Duration
}

func NewMemoryCookieJar() *MemoryCookieJar {
	return &MemoryCookieJar{values: map[string]queuedCookie{}}
}

func (j *MemoryCookieJar) Queue(_ context.Context, key, value string, maxAge time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[key] = queuedCookie{value: value, maxAge: maxAge}
	return nil
}

func (j *MemoryCookieJar) Get(_ context.Context, key string) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.values[key].value, nil
}

func (j *MemoryCookieJar) Forget(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, key)
	return nil
}
