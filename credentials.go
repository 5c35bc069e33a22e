package accounts

import (
	"context"
)

// LoginField is the designated login attribute a credential map must carry.
const LoginField = "email"

// hashedCredentialFields is the static registry of attributes that are never
// queried directly: they are verified against their stored one-way hash.
var hashedCredentialFields = map[string]func(*User) string{
	"password":              func(u *User) string { return u.PasswordHash },
	"password_confirmation": func(u *User) string { return u.PasswordHash },
}

// CredentialStore is the slice of the user store the matcher needs.
type CredentialStore interface {
	FindByAttributes(ctx context.Context, attrs map[string]string) (*User, error)
}

// CredentialMatcher resolves a user from a submitted credential map. A
// missing login field, a missing row, and a hash mismatch are all reported as
// the same not-found outcome so callers cannot distinguish them.
type CredentialMatcher struct {
	store CredentialStore
}

func NewCredentialMatcher(store CredentialStore) *CredentialMatcher {
	return &CredentialMatcher{store: store}
}

// FindByCredentials splits the credential map into plain query attributes and
// hashed attributes, matches the plain ones exactly, then verifies every
// hashed attribute against the stored hash.
func (m *CredentialMatcher) FindByCredentials(ctx context.Context, creds Credentials) (*User, error) {
	if _, ok := creds[LoginField]; !ok {
		return nil, ErrUserNotFound
	}

	plain := make(map[string]string, len(creds))
	hashed := make(map[string]string)

	for field, value := range creds {
		if _, isHashed := hashedCredentialFields[field]; isHashed {
			hashed[field] = value
		} else {
			plain[field] = value
		}
	}

	user, err := m.store.FindByAttributes(ctx, plain)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	for field, value := range hashed {
		storedHash := hashedCredentialFields[field](user)
		if err := ComparePasswordAndHash(value, storedHash); err != nil {
			return nil, ErrUserNotFound
		}
	}

	return user, nil
}
