package accounts

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Throttles interface {
	Find(ctx context.Context, userID uuid.UUID, ip string) (*Throttle, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID, ip string) (*Throttle, error)
	AddLoginAttempt(ctx context.Context, record *Throttle) (*Throttle, error)
	ClearLoginAttempts(ctx context.Context, record *Throttle) error
	Suspend(ctx context.Context, record *Throttle) error
	Ban(ctx context.Context, record *Throttle) error
}

type throttles struct {
	db *bun.DB
}

var _ Throttles = (*throttles)(nil)

func NewThrottlesRepository(db *bun.DB) Throttles {
	return &throttles{db: db}
}

func (t *throttles) Find(ctx context.Context, userID uuid.UUID, ip string) (*Throttle, error) {
	record := &Throttle{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.ip_address = ?", ip).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id":    userID.String(),
					"ip_address": ip,
				})
		}
		return nil, err
	}

	return record, nil
}

func (t *throttles) GetOrCreate(ctx context.Context, userID uuid.UUID, ip string) (*Throttle, error) {
	record, err := t.Find(ctx, userID, ip)
	if err == nil {
		return record, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record = &Throttle{
		ID:        uuid.New(),
		UserID:    userID,
		IPAddress: ip,
	}

	if _, err := t.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

// AddLoginAttempt increments the counter atomically in SQL so concurrent
// failures against the same key are never undercounted. Whether the new
// count warrants a suspension is the caller's call.
func (t *throttles) AddLoginAttempt(ctx context.Context, record *Throttle) (*Throttle, error) {
	if record == nil {
		return nil, nil
	}

	updated := &Throttle{}
	now := time.Now()
	err := t.db.NewRaw(`
		UPDATE "throttles" AS "thr"
		SET
			"attempts" = "attempts" + 1,
			"last_attempt_at" = ?
		WHERE ("thr".id = ?)
		RETURNING *;
	`, now, record.ID).Scan(ctx, updated)

	if err != nil {
		return nil, err
	}

	*record = *updated
	return updated, nil
}

func (t *throttles) Suspend(ctx context.Context, record *Throttle) error {
	if record == nil {
		return nil
	}

	suspendedAt := time.Now()
	_, err := t.db.NewUpdate().
		Model(record).
		Set("is_suspended = ?", true).
		Set("suspended_at = ?", suspendedAt).
		Where("id = ?", record.ID).
		Exec(ctx)

	if err != nil {
		return err
	}

	record.IsSuspended = true
	record.SuspendedAt = &suspendedAt
	return nil
}

func (t *throttles) ClearLoginAttempts(ctx context.Context, record *Throttle) error {
	if record == nil {
		return nil
	}

	_, err := t.db.NewUpdate().
		Model(record).
		Set("attempts = ?", 0).
		Set("last_attempt_at = NULL").
		Set("is_suspended = ?", false).
		Set("suspended_at = NULL").
		Where("id = ?", record.ID).
		Exec(ctx)

	if err != nil {
		return err
	}

	record.Attempts = 0
	record.LastAttemptAt = nil
	record.IsSuspended = false
	record.SuspendedAt = nil
	return nil
}

func (t *throttles) Ban(ctx context.Context, record *Throttle) error {
	if record == nil {
		return nil
	}

	_, err := t.db.NewUpdate().
		Model(record).
		Set("is_banned = ?", true).
		Where("id = ?", record.ID).
		Exec(ctx)

	if err != nil {
		return err
	}

	record.IsBanned = true
	return nil
}
