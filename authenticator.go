package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
)

// Manager wires the credential matcher, throttle guard, and session manager
// into the Authenticator workflow contract. Collaborators default to no-op or
// in-memory implementations so a Manager built from a repository manager and
// a config is immediately usable.
type Manager struct {
	repo         RepositoryManager
	cfg          Config
	matcher      *CredentialMatcher
	guard        *ThrottleGuard
	sessions     *SessionManager
	sessionStore SessionStore
	cookieJar    CookieJar
	featureGate  gate.FeatureGate
	activitySink ActivitySink
	mailer       Mailer
	logger       Logger
}

// NewManager returns a Manager backed by the given repositories.
func NewManager(repo RepositoryManager, cfg Config) *Manager {
	m := &Manager{
		repo:    repo,
		cfg:     cfg,
		matcher: NewCredentialMatcher(repo.Users()),
		guard: NewThrottleGuard(repo.Throttles(), repo.Users(), cfg.GetSuspensionWindow()).
			WithAttemptLimit(cfg.GetAttemptLimit()),
		sessionStore: NewMemorySessionStore(),
		cookieJar:    NewMemoryCookieJar(),
		featureGate:  enabledGate{},
		activitySink: noopActivitySink{},
		mailer:       noopMailer{},
		logger:       defLogger{},
	}

	m.rebuildSessionManager()

	return m
}

func (m *Manager) rebuildSessionManager() {
	m.sessions = NewSessionManager(m.repo.Users(), m.sessionStore, m.cookieJar, m.cfg).
		WithLogger(m.logger)
}

func (m *Manager) WithLogger(logger Logger) *Manager {
	if logger != nil {
		m.logger = logger
		m.guard = m.guard.WithLogger(logger)
		m.rebuildSessionManager()
	}
	return m
}

func (m *Manager) WithSessionStore(store SessionStore) *Manager {
	if store != nil {
		m.sessionStore = store
		m.rebuildSessionManager()
	}
	return m
}

func (m *Manager) WithCookieJar(jar CookieJar) *Manager {
	if jar != nil {
		m.cookieJar = jar
		m.rebuildSessionManager()
	}
	return m
}

func (m *Manager) WithFeatureGate(g gate.FeatureGate) *Manager {
	m.featureGate = normalizeFeatureGate(g)
	return m
}

func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.activitySink = normalizeActivitySink(sink)
	return m
}

func (m *Manager) WithMailer(mailer Mailer) *Manager {
	m.mailer = normalizeMailer(mailer)
	return m
}

var _ Authenticator = (*Manager)(nil)

// Authenticate verifies the submitted credentials and, on success,
// establishes a session. Expected failures come back as a failed Result with
// a user-facing message; only persistence faults populate Result.Err.
//
// Throttle bookkeeping is keyed by the resolved user and the caller IP taken
// from the context. Attempts against logins that do not resolve to a user
// are not tracked.
func (m *Manager) Authenticate(ctx context.Context, creds Credentials, remember bool) (*User, Result) {
	payload := AuthenticatePayload{
		Email:    creds["email"],
		Password: creds["password"],
	}
	if err := payload.Validate(); err != nil {
		field, msg := firstFieldError(err)
		return nil, FieldFailure(field, msg)
	}

	var record *Throttle
	throttling, err := m.featureGate.Enabled(ctx, FeatureLoginThrottle)
	if err != nil {
		m.logger.Warn("feature gate check failed, throttling stays on", "error", err)
		throttling = true
	}

	if throttling {
		record, err = m.guard.FindByLogin(ctx, creds[LoginField], IPAddress(ctx))
		if err != nil {
			return nil, Fault(err)
		}

		allowed, err := m.guard.Check(ctx, record)
		if err != nil {
			return nil, Fault(err)
		}

		if !allowed {
			m.recordActivity(ctx, ActivityEventLoginThrottled, record.UserID.String(), nil)
			return nil, Failure(MsgLoginSuspended)
		}
	}

	user, err := m.matcher.FindByCredentials(ctx, creds)
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			if aerr := m.guard.AddLoginAttempt(ctx, record); aerr != nil {
				return nil, Fault(aerr)
			}
			m.recordActivity(ctx, ActivityEventLoginFailure, "", map[string]any{
				"login": creds[LoginField],
			})
			return nil, FieldFailure("email", MsgLoginNotCorrect)
		}
		return nil, Fault(err)
	}

	if !user.IsActivated && m.activationRequired(ctx) {
		m.recordActivity(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"reason": "inactive",
		})
		return nil, Failure(MsgUserNotActive)
	}

	if err := m.guard.ClearLoginAttempts(ctx, record); err != nil {
		return nil, Fault(err)
	}

	// a successful login invalidates any outstanding password reset code
	if err := m.repo.Users().ClearResetPassword(ctx, user); err != nil {
		return nil, Fault(err)
	}

	if err := m.sessions.Login(ctx, user, remember); err != nil {
		return nil, Fault(err)
	}

	m.recordActivity(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return user, SuccessResult(MsgLoginSuccess, user.ID.String())
}

// Register validates the payload and persists a new account. When activate is
// false the account starts unactivated, with an activation code issued at
// create time and mailed out.
func (m *Manager) Register(ctx context.Context, creds Credentials, activate bool) (*User, Result) {
	if err := requireFeatureGate(ctx, m.featureGate, FeatureSignup, ErrSignupDisabled); err != nil {
		return nil, Failure(MsgSignupDisabled)
	}

	payload := RegisterPayloadFromCredentials(creds)
	if err := payload.Validate(); err != nil {
		field, msg := firstFieldError(err)
		return nil, FieldFailure(field, msg)
	}

	user := payload.User()
	if activate {
		user.Activate()
	}

	created, err := m.repo.Users().Register(ctx, user)
	if err != nil {
		if IsDuplicateEmail(err) {
			return nil, FieldFailure("email", MsgEmailTaken)
		}
		return nil, Fault(err)
	}

	m.recordActivity(ctx, ActivityEventUserRegistered, created.ID.String(), map[string]any{
		"activated": created.IsActivated,
	})

	if !created.IsActivated {
		m.sendActivationMail(ctx, created)
	}

	return created, SuccessResult(MsgRegisterSuccess, created.ID.String())
}

// Login establishes a session for an already resolved user, bypassing
// credential checks. Meant for post-registration auto-login and impersonation
// flows that did their own verification.
func (m *Manager) Login(ctx context.Context, user *User, remember bool) error {
	if err := m.sessions.Login(ctx, user, remember); err != nil {
		return err
	}

	m.recordActivity(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)
	return nil
}

// Logout drops the current session and remember-me cookie.
func (m *Manager) Logout(ctx context.Context) error {
	if user, ok := CurrentUser(ctx); ok && user != nil {
		m.recordActivity(ctx, ActivityEventLogout, user.ID.String(), nil)
	}
	return m.sessions.Logout(ctx)
}

// CheckSession restores the current user from the session store or the
// remember-me cookie and validates the persist code.
func (m *Manager) CheckSession(ctx context.Context) (*User, error) {
	return m.sessions.Restore(ctx)
}

// DeleteUser soft deletes the account: the email is anonymized so it can be
// reused, the persist code is dropped, and the row survives for history.
func (m *Manager) DeleteUser(ctx context.Context, user *User) error {
	if err := m.repo.Users().Delete(ctx, user); err != nil {
		return err
	}

	m.recordActivity(ctx, ActivityEventUserDeleted, user.ID.String(), nil)
	return nil
}

// activationRequired reports whether unactivated accounts are barred from
// logging in. Gate failures keep the requirement on.
func (m *Manager) activationRequired(ctx context.Context) bool {
	required, err := m.featureGate.Enabled(ctx, FeatureActivationRequired)
	if err != nil {
		m.logger.Warn("feature gate check failed, activation stays required", "error", err)
		return true
	}
	return required
}

func (m *Manager) sendActivationMail(ctx context.Context, user *User) {
	err := m.mailer.Send(ctx, MailMessage{
		To:       user.Email,
		Subject:  "Activate your account",
		Template: MailTemplateActivation,
		Data: map[string]any{
			"user_id": user.ID.String(),
			"code":    user.ActivationCode,
		},
	})
	if err != nil {
		m.logger.Warn("activation mail failed", "user_id", user.ID.String(), "error", err)
	}
}

func (m *Manager) recordActivity(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		IPAddress:  IPAddress(ctx),
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if actor, ok := CurrentUser(ctx); ok && actor != nil {
		event.Actor = ActorRef{ID: actor.ID.String(), Type: "user"}
	}

	if err := m.activitySink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink failed", "event", string(eventType), "error", err)
	}
}
