package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccounts/internal"
	"github.com/MrEthical07/goAccounts/password"
	"go.uber.org/zap"
)

// LoginWithPassword authenticates username and password, runs the login
// gate, and on success issues a resume token and prunes old ones. Unknown
// users and wrong passwords return ErrInvalidCredentials; gate rejections
// return the coded error. Every failure is recorded with OnLoginFailure.
func (e *Engine) LoginWithPassword(ctx context.Context, username, pw string) (*LoginResult, error) {
	if e.config.Resume.IssueOnPasswordLogin && e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	attempt := LoginAttempt{
		Type:       LoginTypePassword,
		Username:   username,
		Connection: Connection{ClientAddress: clientIPFromContext(ctx)},
		Allowed:    VerdictDenied,
		Err:        ErrInvalidCredentials,
	}

	user, err := e.users.FindUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		attempt.User = user
		if user.HasPassword() {
			ok, err := e.hasher.Verify(pw, user.Services.Password.Hash)
			if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
				return nil, fmt.Errorf("verify password: %w", err)
			}
			if ok {
				attempt.Allowed = VerdictAllowed
				attempt.Err = nil
			}
		}
	}

	verdict, err := e.ValidateLoginAttempt(ctx, attempt)
	if err == nil && verdict != VerdictAllowed {
		err = ErrInvalidCredentials
	}
	if err != nil {
		attempt.Err = err
		e.recordFailure(ctx, attempt)
		return nil, err
	}

	e.upgradePasswordHash(ctx, user, pw)

	result := &LoginResult{UserID: user.ID}
	if e.config.Resume.IssueOnPasswordLogin {
		token, err := internal.NewResumeToken()
		if err != nil {
			return nil, err
		}
		stored := ResumeToken{HashedToken: internal.HashResumeToken(token), When: time.Now().UTC()}
		if err := e.tokens.AddResumeToken(ctx, user.ID, stored); err != nil {
			return nil, fmt.Errorf("store resume token: %w", err)
		}
		e.metricInc(MetricResumeTokenIssued)
		result.Token = token
	}

	if err := e.OnLogin(ctx, attempt); err != nil {
		return nil, err
	}
	return result, nil
}

// LoginWithResumeToken authenticates a previously issued resume token and
// runs the login gate with type resume.
func (e *Engine) LoginWithResumeToken(ctx context.Context, token string) (*LoginResult, error) {
	if e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.resolveResumeToken(ctx, token)
	if err != nil {
		return nil, err
	}

	attempt := LoginAttempt{
		Type:       LoginTypeResume,
		User:       user,
		Username:   user.Username,
		Connection: Connection{ClientAddress: clientIPFromContext(ctx)},
		Allowed:    VerdictAllowed,
	}

	verdict, err := e.ValidateLoginAttempt(ctx, attempt)
	if err == nil && verdict != VerdictAllowed {
		err = ErrResumeTokenInvalid
	}
	if err != nil {
		attempt.Err = err
		e.recordFailure(ctx, attempt)
		return nil, err
	}

	if err := e.OnLogin(ctx, attempt); err != nil {
		return nil, err
	}
	return &LoginResult{UserID: user.ID}, nil
}

// Authenticate resolves the user behind a resume token for an API request.
// The token must belong to userID. It does not run the login gate.
func (e *Engine) Authenticate(ctx context.Context, userID, token string) (*User, error) {
	if e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.resolveResumeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.ID != userID {
		return nil, ErrResumeTokenInvalid
	}
	return user, nil
}

func (e *Engine) resolveResumeToken(ctx context.Context, token string) (*User, error) {
	if err := internal.ValidResumeToken(token); err != nil {
		return nil, ErrResumeTokenInvalid
	}

	userID, err := e.tokens.FindUserIDByResumeToken(ctx, internal.HashResumeToken(token))
	if err != nil {
		if errors.Is(err, ErrResumeTokenInvalid) {
			return nil, ErrResumeTokenInvalid
		}
		return nil, fmt.Errorf("find resume token: %w", err)
	}
	if userID == "" {
		return nil, ErrResumeTokenInvalid
	}

	user, err := e.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrResumeTokenInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrResumeTokenInvalid
	}
	return user, nil
}

// upgradePasswordHash queues a rehash when the stored hash is weaker than the
// current hasher parameters.
func (e *Engine) upgradePasswordHash(ctx context.Context, user *User, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	upgrader, ok := e.hasher.(password.Upgrader)
	if !ok {
		return
	}
	updater, ok := e.users.(PasswordHashUpdater)
	if !ok {
		return
	}
	stale, err := upgrader.NeedsUpgrade(user.Services.Password.Hash)
	if err != nil || !stale {
		return
	}

	userID := user.ID
	e.submit(ctx, "upgrade_password_hash", func(ctx context.Context) error {
		hash, err := e.hasher.Hash(pw)
		if err != nil {
			return err
		}
		if err := updater.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		e.metricInc(MetricPasswordRehashed)
		return nil
	})
}

func (e *Engine) recordFailure(ctx context.Context, attempt LoginAttempt) {
	if err := e.OnLoginFailure(ctx, attempt); err != nil {
		e.log.Warn("login failure not recorded", zap.String("username", attempt.throttleUsername()), zap.Error(err))
	}
}
