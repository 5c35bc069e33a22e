package accounts

import (
	"context"
)

// LoginResolver maps a login identifier to a user so throttle records can be
// keyed by (user, IP).
type LoginResolver interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// DefaultAttemptLimit is the number of failed attempts a (user, IP) pair gets
// before the record is suspended.
var DefaultAttemptLimit = 5

// ThrottleGuard enforces lockout windows per (login, IP) pair. Failures
// before a user is even resolved are deliberately not tracked: unknown
// logins never accumulate attempts.
type ThrottleGuard struct {
	throttles    Throttles
	resolver     LoginResolver
	window       string
	attemptLimit int
	logger       Logger
}

func NewThrottleGuard(throttles Throttles, resolver LoginResolver, window string) *ThrottleGuard {
	return &ThrottleGuard{
		throttles:    throttles,
		resolver:     resolver,
		window:       window,
		attemptLimit: DefaultAttemptLimit,
		logger:       defLogger{},
	}
}

func (g *ThrottleGuard) WithLogger(l Logger) *ThrottleGuard {
	if l != nil {
		g.logger = l
	}
	return g
}

// WithAttemptLimit overrides the suspension threshold.
func (g *ThrottleGuard) WithAttemptLimit(limit int) *ThrottleGuard {
	if limit > 0 {
		g.attemptLimit = limit
	}
	return g
}

// FindByLogin resolves the login to a user and returns (creating if needed)
// the throttle record for that user and IP. A nil record means the login did
// not resolve and the attempt is not trackable.
func (g *ThrottleGuard) FindByLogin(ctx context.Context, login, ip string) (*Throttle, error) {
	user, err := g.resolver.GetByEmail(ctx, login)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return g.throttles.GetOrCreate(ctx, user.ID, ip)
}

// Check evaluates whether the record currently allows another attempt. A nil
// record is always allowed. When a suspension window has elapsed the record
// is cleared so the counter restarts.
func (g *ThrottleGuard) Check(ctx context.Context, record *Throttle) (bool, error) {
	if record == nil {
		return true, nil
	}

	allowed, err := record.Check(g.window)
	if err != nil {
		return false, err
	}

	if allowed && record.IsSuspended {
		if err := g.throttles.ClearLoginAttempts(ctx, record); err != nil {
			return false, err
		}
	}

	return allowed, nil
}

// AddLoginAttempt records a failed attempt for a resolved user and suspends
// the record once the attempt limit is crossed.
func (g *ThrottleGuard) AddLoginAttempt(ctx context.Context, record *Throttle) error {
	if record == nil {
		return nil
	}

	updated, err := g.throttles.AddLoginAttempt(ctx, record)
	if err != nil {
		return err
	}

	if updated.Attempts >= g.attemptLimit && !updated.IsSuspended && !updated.IsBanned {
		if err := g.throttles.Suspend(ctx, updated); err != nil {
			return err
		}
		g.logger.Warn("throttle suspended", "user_id", updated.UserID.String(), "ip", updated.IPAddress)
	}

	return nil
}

// ClearLoginAttempts resets the record after a successful authentication.
func (g *ThrottleGuard) ClearLoginAttempts(ctx context.Context, record *Throttle) error {
	if record == nil {
		return nil
	}
	return g.throttles.ClearLoginAttempts(ctx, record)
}
