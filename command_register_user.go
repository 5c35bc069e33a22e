package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name       string `json:"name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Activate   bool   `json:"activate"`
	UseHashid  bool
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserHandler struct {
	repo        RepositoryManager
	featureGate gate.FeatureGate
	mailer      Mailer
}

func NewRegisterUserHandler(repo RepositoryManager, featureGate gate.FeatureGate, mailer Mailer) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:        repo,
		featureGate: normalizeFeatureGate(featureGate),
		mailer:      normalizeMailer(mailer),
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := requireFeatureGate(ctx, h.featureGate, FeatureSignup, ErrSignupDisabled); err != nil {
		return err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.Email = event.Email
		user.Password = event.Password
		user.PasswordConfirmation = event.Password
		user.Name = event.Name
		user.LastName = event.LastName
		user.MiddleName = event.MiddleName

		if event.Phone != "" {
			user.SetPhone(event.Phone)
		}

		if event.Activate {
			user.Activate()
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		var err error
		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if !user.IsActivated {
		if err := h.mailer.Send(ctx, MailMessage{
			To:       user.Email,
			Subject:  "Activate your account",
			Template: MailTemplateActivation,
			Data: map[string]any{
				"user_id": user.ID.String(),
				"code":    user.ActivationCode,
			},
		}); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send activation notification")
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
