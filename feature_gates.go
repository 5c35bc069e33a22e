package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// Feature keys owned by this package. Gates default to enabled when no
// provider is configured.
const (
	FeatureSignup                = "accounts.signup"
	FeaturePasswordReset         = "accounts.password.reset"
	FeaturePasswordResetFinalize = "accounts.password.reset.finalize"
	FeatureLoginThrottle         = "accounts.login.throttle"
	FeatureActivationRequired    = "accounts.activation.required"
)

// enabledGate answers true for every key; it backs managers built without an
// explicit feature gate provider.
type enabledGate struct{}

func (enabledGate) Enabled(context.Context, string, ...gate.ResolveOption) (bool, error) {
	return true, nil
}

func normalizeFeatureGate(g gate.FeatureGate) gate.FeatureGate {
	if g == nil {
		return enabledGate{}
	}
	return g
}

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

func requirePasswordResetGate(ctx context.Context, featureGate gate.FeatureGate, allowFinalize bool) error {
	opts := []guard.Option{
		guard.WithDisabledError(ErrPasswordResetDisabled),
		guard.WithErrorMapper(normalizeFeatureGateError),
	}
	if allowFinalize {
		opts = append(opts, guard.WithOverrides(FeaturePasswordResetFinalize))
	}
	return guard.Require(ctx, featureGate, FeaturePasswordReset, opts...)
}
