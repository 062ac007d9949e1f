package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNoCachedSession is returned by Provider.TokenSilent when nothing in the
// local session cache can be renewed silently.
var ErrNoCachedSession = errors.New("auth: no cached session")

// Provider obtains bearer tokens from an identity provider.
type Provider interface {
	// TokenSilent renews a token from the cached session without user interaction.
	TokenSilent(ctx context.Context, scopes []string) (string, error)
	// TokenInteractive runs the consent flow. For headless providers this is
	// whatever flow needs no cached session.
	TokenInteractive(ctx context.Context, scopes []string) (string, error)
}

// Error means no credential could be obtained.
type Error struct {
	Silent      error
	Interactive error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: token acquisition failed: %v", e.Interactive)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Silent != nil {
		errs = append(errs, e.Silent)
	}
	if e.Interactive != nil {
		errs = append(errs, e.Interactive)
	}
	return errs
}

var errEmptyToken = errors.New("auth: provider returned an empty token")

type Authenticator struct {
	provider Provider
	scopes   []string
	logger   *zap.Logger
}

func NewAuthenticator(p Provider, scope string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		provider: p,
		scopes:   []string{scope},
		logger:   logger,
	}
}

// AcquireCredential tries silent renewal first and falls back to one
// interactive attempt.
func (a *Authenticator) AcquireCredential(ctx context.Context) (string, error) {
	token, silentErr := a.provider.TokenSilent(ctx, a.scopes)
	if silentErr == nil && token != "" {
		a.logger.Debug("token renewed from cached session")
		return token, nil
	}
	if silentErr == nil {
		silentErr = errEmptyToken
	}
	if errors.Is(silentErr, ErrNoCachedSession) {
		a.logger.Info("no cached session, starting interactive sign-in")
	} else {
		a.logger.Info("silent token renewal failed, starting interactive sign-in", zap.Error(silentErr))
	}

	token, err := a.provider.TokenInteractive(ctx, a.scopes)
	if err == nil && token == "" {
		err = errEmptyToken
	}
	if err != nil {
		return "", &Error{Silent: silentErr, Interactive: err}
	}
	return token, nil
}
