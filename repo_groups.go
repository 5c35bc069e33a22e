package accounts

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Groups interface {
	GetByCode(ctx context.Context, code string) (*Group, error)
	Create(ctx context.Context, group *Group) (*Group, error)
	AssignUser(ctx context.Context, user *User, group *Group) error
	RemoveUser(ctx context.Context, user *User, group *Group) error
	ForUser(ctx context.Context, user *User) ([]*Group, error)
}

type groups struct {
	repository.Repository[*Group]
	db *bun.DB
}

var _ Groups = (*groups)(nil)

func NewGroupsRepository(db *bun.DB) Groups {
	repo := repository.NewRepository[*Group](db, repository.ModelHandlers[*Group]{
		NewRecord: func() *Group { return &Group{} },
		GetID: func(g *Group) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Group, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &groups{
		Repository: repo,
		db:         db,
	}
}

func (g *groups) GetByCode(ctx context.Context, code string) (*Group, error) {
	record := &Group{}
	err := g.db.NewSelect().
		Model(record).
		Where("?TableAlias.code = ?", code).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"code": code})
		}
		return nil, err
	}

	return record, nil
}

func (g *groups) Create(ctx context.Context, group *Group) (*Group, error) {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	return g.Repository.Create(ctx, group)
}

func (g *groups) AssignUser(ctx context.Context, user *User, group *Group) error {
	membership := &UserGroup{
		UserID:  user.ID,
		GroupID: group.ID,
	}

	_, err := g.db.NewInsert().
		Model(membership).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	return err
}

func (g *groups) RemoveUser(ctx context.Context, user *User, group *Group) error {
	_, err := g.db.NewDelete().
		Model((*UserGroup)(nil)).
		Where("user_id = ?", user.ID).
		Where("group_id = ?", group.ID).
		Exec(ctx)

	return err
}

func (g *groups) ForUser(ctx context.Context, user *User) ([]*Group, error) {
	var records []*Group
	err := g.db.NewSelect().
		Model(&records).
		Join(`JOIN users_groups AS usrgrp ON usrgrp.group_id = ?TableAlias.id`).
		Where("usrgrp.user_id = ?", user.ID).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}
