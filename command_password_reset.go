package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type ResetPasswordMessage struct {
	Code                 string `json:"code"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	OnResponse           func(user *User)
}

func (e ResetPasswordMessage) Type() string { return "user.password_reset" }

// ResetPasswordHandler consumes a restore code and sets a new password. The
// code is single use: the same statement that writes the new hash clears the
// stored code and its timestamp.
type ResetPasswordHandler struct {
	repo        RepositoryManager
	featureGate gate.FeatureGate
	codeWindow  string
}

func NewResetPasswordHandler(repo RepositoryManager, featureGate gate.FeatureGate, cfg Config) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		repo:        repo,
		featureGate: normalizeFeatureGate(featureGate),
		codeWindow:  cfg.GetRestoreCodeWindow(),
	}
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	if err := requirePasswordResetGate(ctx, h.featureGate, true); err != nil {
		return err
	}

	if event.Password == "" {
		return goerrors.New("password is required", goerrors.CategoryValidation)
	}

	if event.Password != event.PasswordConfirmation {
		return goerrors.New("password confirmation does not match", goerrors.CategoryValidation)
	}

	userID, code, err := DecodeRestoreCode(event.Code)
	if err != nil {
		return err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByID(ctx, userID)
		if err != nil {
			if IsNotFound(err) {
				return ErrInvalidRestoreCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if !user.CheckResetPasswordCode(code) {
			return ErrInvalidRestoreCode
		}

		if user.ResetCodeSentAt != nil {
			expired, err := IsOutsideThresholdPeriod(*user.ResetCodeSentAt, h.codeWindow)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid restore code window")
			}
			if expired {
				return goerrors.New("restore code has expired", goerrors.CategoryValidation).
					WithTextCode(TextCodeRestoreExpired)
			}
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
		}

		user.PasswordHash = hash
		user.ResetPasswordCode = ""
		user.ResetCodeSentAt = nil

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
