package accounts

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var resetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_password_code" = NULL,
	"reset_code_sent_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// plainCredentialColumns whitelists the attributes a credential query may
// match on. Hashed attributes are handled by the matcher, never queried.
var plainCredentialColumns = map[string]string{
	"email":       "email",
	"name":        "name",
	"last_name":   "last_name",
	"middle_name": "middle_name",
	"phone":       "phone",
}

type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByActivationCode(ctx context.Context, code string) (*User, error)
	FindByAttributes(ctx context.Context, attrs map[string]string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	Activate(ctx context.Context, user *User) error
	ActivateTx(ctx context.Context, tx bun.IDB, user *User) error
	SavePersistCode(ctx context.Context, user *User, code string) error
	SaveResetPasswordCode(ctx context.Context, user *User, code string) error
	SaveResetPasswordCodeTx(ctx context.Context, tx bun.IDB, user *User, code string) error
	ClearResetPassword(ctx context.Context, user *User) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error

	Delete(ctx context.Context, user *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getByColumn(ctx, "id", id.String())
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumn(ctx, "email", email)
}

func (a *users) GetByActivationCode(ctx context.Context, code string) (*User, error) {
	if code == "" {
		return nil, repository.NewRecordNotFound()
	}
	return a.getByColumn(ctx, "activation_code", code)
}

func (a *users) getByColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

// FindByAttributes matches all given plain attributes exactly. Attributes
// outside the whitelist cannot match any column and resolve to not-found,
// the same outcome a missing row produces.
func (a *users) FindByAttributes(ctx context.Context, attrs map[string]string) (*User, error) {
	if len(attrs) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	q := a.db.NewSelect().Model(record)

	for attr, value := range attrs {
		column, ok := plainCredentialColumns[attr]
		if !ok {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"attribute": attr})
		}
		q = q.Where(fmt.Sprintf("?TableAlias.%s = ?", column), value)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx runs the explicit pre-create pipeline and persists the record:
// default password from email, hash credentials, issue an activation code
// for unactivated accounts, assign an ID. The in-memory password fields are
// purged after a successful save.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if err := prepareUserForCreate(user); err != nil {
		return nil, err
	}

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	purgeTransientCredentials(created)
	purgeTransientCredentials(user)

	return created, nil
}

func (a *users) Update(ctx context.Context, user *User) (*User, error) {
	return a.UpdateTx(ctx, a.db, user)
}

func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user.Password != "" {
		hash, err := HashPassword(user.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String()))
	if err != nil {
		return nil, err
	}

	purgeTransientCredentials(updated)
	purgeTransientCredentials(user)

	return updated, nil
}

func (a *users) Activate(ctx context.Context, user *User) error {
	return a.ActivateTx(ctx, a.db, user)
}

func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, user *User) error {
	user.Activate()

	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"is_activated" = ?,
			"activated_at" = ?,
			"activation_code" = NULL
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, true, user.ActivatedAt, user.ID).Exec(ctx)

	return err
}

func (a *users) SavePersistCode(ctx context.Context, user *User, code string) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "persist_code" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, code, user.ID).Exec(ctx)

	if err != nil {
		return err
	}

	user.PersistCode = code
	return nil
}

func (a *users) SaveResetPasswordCode(ctx context.Context, user *User, code string) error {
	return a.SaveResetPasswordCodeTx(ctx, a.db, user, code)
}

func (a *users) SaveResetPasswordCodeTx(ctx context.Context, tx bun.IDB, user *User, code string) error {
	sentAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"reset_password_code" = ?,
			"reset_code_sent_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, code, sentAt, user.ID).Exec(ctx)

	if err != nil {
		return err
	}

	user.ResetPasswordCode = code
	user.ResetCodeSentAt = &sentAt
	return nil
}

func (a *users) ClearResetPassword(ctx context.Context, user *User) error {
	if user.ResetPasswordCode == "" && user.ResetCodeSentAt == nil {
		return nil
	}

	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"reset_password_code" = NULL,
			"reset_code_sent_at" = NULL
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, user.ID).Exec(ctx)

	if err != nil {
		return err
	}

	user.ResetPasswordCode = ""
	user.ResetCodeSentAt = nil
	return nil
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, resetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	lastLogin := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "last_login" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, lastLogin, user.ID).Exec(ctx)

	if err != nil {
		return err
	}

	user.LastLogin = &lastLogin
	return nil
}

// Delete anonymizes the email and soft deletes the row in a single
// statement. The row is never removed; referential history survives and the
// original email becomes free for re-registration.
func (a *users) Delete(ctx context.Context, user *User) error {
	anonymized := anonymizedEmail()
	deletedAt := time.Now()

	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"email" = ?,
			"persist_code" = NULL,
			"deleted_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, anonymized, deletedAt, user.ID).Exec(ctx)

	if err != nil {
		return err
	}

	user.Email = anonymized
	user.PersistCode = ""
	user.DeletedAt = &deletedAt
	return nil
}

// prepareUserForCreate is the explicit pre-validate/pre-create pipeline.
func prepareUserForCreate(user *User) error {
	if user == nil {
		return goerrors.New("cannot register a nil user", goerrors.CategoryBadInput)
	}

	// stage 1: accounts created without a password default it to the email
	if user.Password == "" && user.PasswordConfirmation == "" && user.PasswordHash == "" {
		user.Password = user.Email
		user.PasswordConfirmation = user.Email
	}

	// stage 2: hash credentials, never persist cleartext
	if user.PasswordHash == "" {
		hash, err := HashPassword(user.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}

	// stage 3: unactivated accounts get a fresh activation code
	if !user.IsActivated && user.ActivationCode == "" {
		user.ActivationCode = RandomCode()
	}

	if user.Phone != "" && user.PhoneShort == "" {
		user.PhoneShort = normalizePhones(user.Phone)
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	return nil
}

func purgeTransientCredentials(user *User) {
	if user == nil {
		return
	}
	user.Password = ""
	user.PasswordConfirmation = ""
}

func anonymizedEmail() string {
	return fmt.Sprintf("removed%d@removed.del", time.Now().UnixNano())
}
