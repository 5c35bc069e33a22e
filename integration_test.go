package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	accounts "github.com/avetikov/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*accounts.UserGroup)(nil))

	models := []any{
		(*accounts.User)(nil),
		(*accounts.Group)(nil),
		(*accounts.UserGroup)(nil),
		(*accounts.Throttle)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(context.Background())
		require.NoError(t, err)
	}

	return db
}

func TestUsersRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()
	users := repo.Users()

	t.Run("register defaults the password to the email", func(t *testing.T) {
		created, err := users.Register(ctx, &accounts.User{Email: "implicit@example.com"})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.NotEmpty(t, created.ActivationCode)
		assert.False(t, created.IsActivated)
		require.NoError(t, accounts.ComparePasswordAndHash(created.PasswordHash, "implicit@example.com"))

		// cleartext never survives the create
		assert.Empty(t, created.Password)
		assert.Empty(t, created.PasswordConfirmation)
	})

	t.Run("register hashes the submitted password", func(t *testing.T) {
		_, err := users.Register(ctx, &accounts.User{
			Email:    "explicit@example.com",
			Password: "chosen-password",
		})
		require.NoError(t, err)

		stored, err := users.GetByEmail(ctx, "explicit@example.com")
		require.NoError(t, err)
		require.NoError(t, accounts.ComparePasswordAndHash(stored.PasswordHash, "chosen-password"))
		assert.Error(t, accounts.ComparePasswordAndHash(stored.PasswordHash, "wrong"))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := users.Register(ctx, &accounts.User{Email: "dup@example.com"})
		require.NoError(t, err)

		_, err = users.Register(ctx, &accounts.User{Email: "dup@example.com"})
		require.Error(t, err)
		assert.True(t, accounts.IsDuplicateEmail(err))
	})

	t.Run("activation consumes the code", func(t *testing.T) {
		created, err := users.Register(ctx, &accounts.User{Email: "pending@example.com"})
		require.NoError(t, err)
		code := created.ActivationCode

		found, err := users.GetByActivationCode(ctx, code)
		require.NoError(t, err)
		require.NoError(t, users.Activate(ctx, found))

		stored, err := users.GetByEmail(ctx, "pending@example.com")
		require.NoError(t, err)
		assert.True(t, stored.IsActivated)
		assert.Empty(t, stored.ActivationCode)

		_, err = users.GetByActivationCode(ctx, code)
		assert.True(t, accounts.IsNotFound(err))
	})

	t.Run("reset password consumes the code", func(t *testing.T) {
		created, err := users.Register(ctx, &accounts.User{Email: "reset@example.com"})
		require.NoError(t, err)

		require.NoError(t, users.SaveResetPasswordCode(ctx, created, accounts.RandomCode()))

		stored, err := users.GetByEmail(ctx, "reset@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, stored.ResetPasswordCode)
		require.NotNil(t, stored.ResetCodeSentAt)

		newHash, err := accounts.HashPassword("brand-new-password")
		require.NoError(t, err)
		require.NoError(t, users.ResetPassword(ctx, created.ID, newHash))

		stored, err = users.GetByEmail(ctx, "reset@example.com")
		require.NoError(t, err)
		assert.Empty(t, stored.ResetPasswordCode)
		assert.Nil(t, stored.ResetCodeSentAt)
		require.NoError(t, accounts.ComparePasswordAndHash(stored.PasswordHash, "brand-new-password"))
	})

	t.Run("track successful login stamps last_login", func(t *testing.T) {
		created, err := users.Register(ctx, &accounts.User{Email: "login@example.com"})
		require.NoError(t, err)

		require.NoError(t, users.TrackSuccessfulLogin(ctx, created))

		stored, err := users.GetByEmail(ctx, "login@example.com")
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLogin)
	})

	t.Run("soft delete anonymizes and preserves the row", func(t *testing.T) {
		created, err := users.Register(ctx, &accounts.User{Email: "leaving@example.com"})
		require.NoError(t, err)
		require.NoError(t, users.SavePersistCode(ctx, created, accounts.RandomCode()))

		require.NoError(t, users.Delete(ctx, created))

		// the original email no longer resolves and is free for reuse
		_, err = users.GetByEmail(ctx, "leaving@example.com")
		assert.True(t, accounts.IsNotFound(err))
		_, err = users.Register(ctx, &accounts.User{Email: "leaving@example.com"})
		require.NoError(t, err)

		// the row itself survives, anonymized and stripped of its session
		row := &accounts.User{}
		err = db.NewSelect().Model(row).
			WhereAllWithDeleted().
			Where("?TableAlias.id = ?", created.ID.String()).
			Scan(ctx)
		require.NoError(t, err)
		assert.Regexp(t, `^removed\d+@removed\.del$`, row.Email)
		assert.Empty(t, row.PersistCode)
		assert.NotNil(t, row.DeletedAt)
	})
}

func TestThrottlesRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := accounts.NewRepositoryManager(db)
	users := repo.Users()
	throttles := repo.Throttles()

	owner, err := users.Register(ctx, &accounts.User{Email: "throttled@example.com"})
	require.NoError(t, err)

	t.Run("get or create is keyed by user and IP", func(t *testing.T) {
		record, err := throttles.GetOrCreate(ctx, owner.ID, "10.0.0.1")
		require.NoError(t, err)

		again, err := throttles.GetOrCreate(ctx, owner.ID, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, record.ID, again.ID)

		other, err := throttles.GetOrCreate(ctx, owner.ID, "10.0.0.2")
		require.NoError(t, err)
		assert.NotEqual(t, record.ID, other.ID)
	})

	t.Run("attempts increment in the database", func(t *testing.T) {
		record, err := throttles.GetOrCreate(ctx, owner.ID, "10.1.0.1")
		require.NoError(t, err)

		for want := 1; want <= 3; want++ {
			updated, err := throttles.AddLoginAttempt(ctx, record)
			require.NoError(t, err)
			assert.Equal(t, want, updated.Attempts)
		}

		stored, err := throttles.Find(ctx, owner.ID, "10.1.0.1")
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Attempts)
		assert.NotNil(t, stored.LastAttemptAt)
		assert.False(t, stored.IsSuspended)
	})

	t.Run("guard suspends once the limit is crossed", func(t *testing.T) {
		guard := accounts.NewThrottleGuard(throttles, users, "15m").WithAttemptLimit(3)

		record, err := guard.FindByLogin(ctx, "throttled@example.com", "10.2.0.1")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.NoError(t, guard.AddLoginAttempt(ctx, record))
		}

		stored, err := throttles.Find(ctx, owner.ID, "10.2.0.1")
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Attempts)
		assert.True(t, stored.IsSuspended)
		assert.NotNil(t, stored.SuspendedAt)

		allowed, err := guard.Check(ctx, stored)
		require.NoError(t, err)
		assert.False(t, allowed)

		require.NoError(t, guard.ClearLoginAttempts(ctx, stored))
		stored, err = throttles.Find(ctx, owner.ID, "10.2.0.1")
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Attempts)
		assert.False(t, stored.IsSuspended)
	})

	t.Run("ban blocks regardless of the window", func(t *testing.T) {
		record, err := throttles.GetOrCreate(ctx, owner.ID, "10.3.0.1")
		require.NoError(t, err)

		require.NoError(t, throttles.Ban(ctx, record))

		stored, err := throttles.Find(ctx, owner.ID, "10.3.0.1")
		require.NoError(t, err)
		assert.True(t, stored.IsBanned)

		allowed, err := stored.Check("15m")
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}
