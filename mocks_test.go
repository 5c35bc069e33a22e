package accounts_test

import (
	"context"
	"database/sql"
	"sync"

	accounts "github.com/avetikov/go-accounts"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements accounts.Users
type MockUsers struct {
	mock.Mock
}

func userArg(args mock.Arguments, i int) *accounts.User {
	if u, ok := args.Get(i).(*accounts.User); ok {
		return u
	}
	return nil
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) GetByActivationCode(ctx context.Context, code string) (*accounts.User, error) {
	args := m.Called(ctx, code)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) FindByAttributes(ctx context.Context, attrs map[string]string) (*accounts.User, error) {
	args := m.Called(ctx, attrs)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, tx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, tx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) Activate(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) ActivateTx(ctx context.Context, tx bun.IDB, user *accounts.User) error {
	args := m.Called(ctx, tx, user)
	return args.Error(0)
}

func (m *MockUsers) SavePersistCode(ctx context.Context, user *accounts.User, code string) error {
	args := m.Called(ctx, user, code)
	if args.Error(0) == nil {
		user.PersistCode = code
	}
	return args.Error(0)
}

func (m *MockUsers) SaveResetPasswordCode(ctx context.Context, user *accounts.User, code string) error {
	args := m.Called(ctx, user, code)
	return args.Error(0)
}

func (m *MockUsers) SaveResetPasswordCodeTx(ctx context.Context, tx bun.IDB, user *accounts.User, code string) error {
	args := m.Called(ctx, tx, user, code)
	if args.Error(0) == nil {
		user.ResetPasswordCode = code
	}
	return args.Error(0)
}

func (m *MockUsers) ClearResetPassword(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ResetPasswordCode = ""
		user.ResetCodeSentAt = nil
	}
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) Delete(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

var _ accounts.Users = (*MockUsers)(nil)

// MockThrottles implements accounts.Throttles
type MockThrottles struct {
	mock.Mock
}

func throttleArg(args mock.Arguments, i int) *accounts.Throttle {
	if t, ok := args.Get(i).(*accounts.Throttle); ok {
		return t
	}
	return nil
}

func (m *MockThrottles) Find(ctx context.Context, userID uuid.UUID, ip string) (*accounts.Throttle, error) {
	args := m.Called(ctx, userID, ip)
	return throttleArg(args, 0), args.Error(1)
}

func (m *MockThrottles) GetOrCreate(ctx context.Context, userID uuid.UUID, ip string) (*accounts.Throttle, error) {
	args := m.Called(ctx, userID, ip)
	return throttleArg(args, 0), args.Error(1)
}

func (m *MockThrottles) AddLoginAttempt(ctx context.Context, record *accounts.Throttle) (*accounts.Throttle, error) {
	args := m.Called(ctx, record)
	return throttleArg(args, 0), args.Error(1)
}

func (m *MockThrottles) ClearLoginAttempts(ctx context.Context, record *accounts.Throttle) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockThrottles) Suspend(ctx context.Context, record *accounts.Throttle) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockThrottles) Ban(ctx context.Context, record *accounts.Throttle) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

var _ accounts.Throttles = (*MockThrottles)(nil)

// MockGroups implements accounts.Groups
type MockGroups struct {
	mock.Mock
}

func (m *MockGroups) GetByCode(ctx context.Context, code string) (*accounts.Group, error) {
	args := m.Called(ctx, code)
	if g, ok := args.Get(0).(*accounts.Group); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGroups) Create(ctx context.Context, group *accounts.Group) (*accounts.Group, error) {
	args := m.Called(ctx, group)
	if g, ok := args.Get(0).(*accounts.Group); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGroups) AssignUser(ctx context.Context, user *accounts.User, group *accounts.Group) error {
	args := m.Called(ctx, user, group)
	return args.Error(0)
}

func (m *MockGroups) RemoveUser(ctx context.Context, user *accounts.User, group *accounts.Group) error {
	args := m.Called(ctx, user, group)
	return args.Error(0)
}

func (m *MockGroups) ForUser(ctx context.Context, user *accounts.User) ([]*accounts.Group, error) {
	args := m.Called(ctx, user)
	if g, ok := args.Get(0).([]*accounts.Group); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ accounts.Groups = (*MockGroups)(nil)

// testRepositoryManager wires mocks into an accounts.RepositoryManager;
// RunInTx runs the callback directly against a zero transaction since the
// repositories behind it are mocks.
type testRepositoryManager struct {
	users     *MockUsers
	throttles *MockThrottles
	groups    *MockGroups
}

func newTestRepositoryManager() *testRepositoryManager {
	return &testRepositoryManager{
		users:     new(MockUsers),
		throttles: new(MockThrottles),
		groups:    new(MockGroups),
	}
}

func (m *testRepositoryManager) Validate() error { return nil }
func (m *testRepositoryManager) MustValidate()   {}

func (m *testRepositoryManager) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *testRepositoryManager) Users() accounts.Users         { return m.users }
func (m *testRepositoryManager) Throttles() accounts.Throttles { return m.throttles }
func (m *testRepositoryManager) Groups() accounts.Groups       { return m.groups }

var _ accounts.RepositoryManager = (*testRepositoryManager)(nil)

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// capturingSink collects activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) Events() []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *capturingSink) EventTypes() []accounts.ActivityEventType {
	var types []accounts.ActivityEventType
	for _, e := range s.Events() {
		types = append(types, e.EventType)
	}
	return types
}

// capturingMailer collects outbound messages.
type capturingMailer struct {
	mu       sync.Mutex
	messages []accounts.MailMessage
}

func (m *capturingMailer) Send(_ context.Context, msg accounts.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *capturingMailer) Messages() []accounts.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]accounts.MailMessage, len(m.messages))
	copy(out, m.messages)
	return out
}
