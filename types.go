package accounts

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Credentials is the scalar map submitted to authenticate and register calls.
// Keys are attribute names; the designated login field is "email".
type Credentials map[string]string

// Authenticator is the single public contract exposed to callers.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials, remember bool) (*User, Result)
	Register(ctx context.Context, creds Credentials, activate bool) (*User, Result)
	Login(ctx context.Context, user *User, remember bool) error
	Logout(ctx context.Context) error
	CheckSession(ctx context.Context) (*User, error)
}

// Config holds manager options
type Config interface {
	GetSessionKey() string
	GetAttemptLimit() int
	GetSuspensionWindow() string
	GetRestoreCodeWindow() string
	GetRememberCookieMaxAge() time.Duration
}

// SessionStore is the request-scoped key-value store a session token is
// written to. Implementations are external collaborators.
type SessionStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Forget(ctx context.Context, key string) error
}

// CookieJar queues durable cookies for the current response. A zero maxAge
// queues a session cookie; remember-me logins use a far-future expiry.
type CookieJar interface {
	Queue(ctx context.Context, key, value string, maxAge time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Forget(ctx context.Context, key string) error
}

// Mailer dispatches account notifications. Template rendering and transport
// belong to the caller; the core only hands over addressing and payload data.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Mail template identifiers handed to the Mailer. The caller maps them to
// whatever rendering it uses.
const (
	MailTemplateActivation = "accounts.mail.activate"
	MailTemplateRestore    = "accounts.mail.restore"
)

// MailMessage is the payload handed to a Mailer.
type MailMessage struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, MailMessage) error { return nil }

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// ManagerConfig is the default Config implementation.
type ManagerConfig struct {
	SessionKey           string
	AttemptLimit         int
	SuspensionWindow     string
	RestoreCodeWindow    string
	RememberCookieMaxAge time.Duration
}

// DefaultConfig mirrors the historical defaults: five attempts, a fifteen
// minute suspension, and restore codes valid for a day.
func DefaultConfig() ManagerConfig {
	return ManagerConfig{
		SessionKey:           "accounts_user_auth",
		AttemptLimit:         5,
		SuspensionWindow:     "15m",
		RestoreCodeWindow:    "24h",
		RememberCookieMaxAge: 5 * 365 * 24 * time.Hour,
	}
}

func (c ManagerConfig) GetSessionKey() string {
	if c.SessionKey == "" {
		return "accounts_user_auth"
	}
	return c.SessionKey
}

func (c ManagerConfig) GetAttemptLimit() int {
	if c.AttemptLimit <= 0 {
		return 5
	}
	return c.AttemptLimit
}

func (c ManagerConfig) GetSuspensionWindow() string {
	if c.SuspensionWindow == "" {
		return "15m"
	}
	return c.SuspensionWindow
}

func (c ManagerConfig) GetRestoreCodeWindow() string {
	if c.RestoreCodeWindow == "" {
		return "24h"
	}
	return c.RestoreCodeWindow
}

func (c ManagerConfig) GetRememberCookieMaxAge() time.Duration {
	if c.RememberCookieMaxAge <= 0 {
		return 5 * 365 * 24 * time.Hour
	}
	return c.RememberCookieMaxAge
}

var _ Config = ManagerConfig{}
