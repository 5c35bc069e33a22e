package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type RestorePasswordMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *RestorePasswordResponse)
}

func (e RestorePasswordMessage) Type() string { return "user.password_restore" }

// RestorePasswordResponse reports Success for every well-formed request,
// whether or not the email resolved to an account. RestoreCode is populated
// only when it did; it is meant for the mail payload, never for the caller's
// HTTP response.
type RestorePasswordResponse struct {
	Success     bool
	RestoreCode string
}

type RestorePasswordHandler struct {
	repo        RepositoryManager
	featureGate gate.FeatureGate
	mailer      Mailer
}

func NewRestorePasswordHandler(repo RepositoryManager, featureGate gate.FeatureGate, mailer Mailer) *RestorePasswordHandler {
	return &RestorePasswordHandler{
		repo:        repo,
		featureGate: normalizeFeatureGate(featureGate),
		mailer:      normalizeMailer(mailer),
	}
}

func (h *RestorePasswordHandler) Execute(ctx context.Context, event RestorePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password restore",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RestorePasswordHandler) execute(ctx context.Context, event RestorePasswordMessage) error {
	if err := requirePasswordResetGate(ctx, h.featureGate, false); err != nil {
		return err
	}

	if event.Email == "" {
		return goerrors.New("email is required for password restore", goerrors.CategoryBadInput)
	}

	resp := &RestorePasswordResponse{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmail(ctx, event.Email)
		if err != nil {
			if IsNotFound(err) {
				// do not leak whether the account exists
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password restore")
		}

		code := RandomCode()
		if err := h.repo.Users().SaveResetPasswordCodeTx(ctx, tx, user, code); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset password code")
		}

		resp.RestoreCode = user.GetRestoreCode()

		return h.mailer.Send(ctx, MailMessage{
			To:       user.Email,
			Subject:  "Restore your password",
			Template: MailTemplateRestore,
			Data: map[string]any{
				"user_id": user.ID.String(),
				"code":    resp.RestoreCode,
			},
		})
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password restore transaction failed")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
