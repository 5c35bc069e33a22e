package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateUserMessage struct {
	Code       string `json:"code"`
	OnResponse func(user *User)
}

func (e ActivateUserMessage) Type() string { return "user.activate" }

type ActivateUserHandler struct {
	repo RepositoryManager
	sink ActivitySink
}

func NewActivateUserHandler(repo RepositoryManager, sink ActivitySink) *ActivateUserHandler {
	return &ActivateUserHandler{
		repo: repo,
		sink: normalizeActivitySink(sink),
	}
}

func (h *ActivateUserHandler) Execute(ctx context.Context, event ActivateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateUserHandler) execute(ctx context.Context, event ActivateUserMessage) error {
	if event.Code == "" {
		return ErrInvalidActivationCode
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByActivationCode(ctx, event.Code)
		if err != nil {
			if IsNotFound(err) {
				return ErrInvalidActivationCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
		}

		if user.IsActivated {
			return nil
		}

		if err := h.repo.Users().ActivateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user activation transaction failed")
	}

	// the sink is observability only, never fail activation over it
	_ = h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventUserActivated,
		UserID:     user.ID.String(),
		IPAddress:  IPAddress(ctx),
		OccurredAt: time.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
