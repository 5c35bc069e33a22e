package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Throttles() Throttles
	Groups() Groups
}

type mngr struct {
	db        *bun.DB
	users     Users
	throttles Throttles
	groups    Groups
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	// the m2m join model has to be known before any relation query runs
	db.RegisterModel((*UserGroup)(nil))

	return &mngr{
		db:        db,
		users:     NewUsersRepository(db),
		throttles: NewThrottlesRepository(db),
		groups:    NewGroupsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.throttles == nil {
		return errors.New("repository throttles should be initialized")
	}

	if m.groups == nil {
		return errors.New("repository groups should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Throttles() Throttles {
	return m.throttles
}

func (m mngr) Groups() Groups {
	return m.groups
}
