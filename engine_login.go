package goAccounts

import (
	"context"
	"fmt"
	"time"
)

// ValidateLoginAttempt is the login gate. It returns VerdictAllowed when
// every check passes, the attempt's own verdict unchanged when it was not
// allowed upstream, and VerdictDenied with a coded error on rejection.
// Rejection errors carry {"function": "Accounts.validateLoginAttempt"}.
func (e *Engine) ValidateLoginAttempt(ctx context.Context, attempt LoginAttempt) (LoginVerdict, error) {
	start := time.Now()
	defer e.observeSince(MetricValidateLoginLatency, start)

	settings, err := e.snapshot(ctx)
	if err != nil {
		return VerdictDenied, err
	}

	attempt, err = e.beforeValidateLogin.Run(ctx, attempt)
	if err != nil {
		return e.rejectLogin(ctx, attempt, err)
	}

	if e.limiter != nil {
		ok, err := e.limiter.AllowIP(ctx, attempt.Connection.ClientIP())
		if err != nil {
			return VerdictDenied, fmt.Errorf("login limiter: %w", err)
		}
		if !ok {
			e.metricInc(MetricLoginBlockedIP)
			return e.rejectLogin(ctx, attempt, ErrLoginBlockedForIP.withDetails(loginDetails))
		}

		ok, err = e.limiter.AllowUser(ctx, attempt.throttleUsername())
		if err != nil {
			return VerdictDenied, fmt.Errorf("login limiter: %w", err)
		}
		if !ok {
			e.metricInc(MetricLoginBlockedUser)
			return e.rejectLogin(ctx, attempt, ErrLoginBlockedForUser.withDetails(loginDetails))
		}
	}

	if attempt.Allowed != VerdictAllowed {
		e.metricInc(MetricLoginDeferred)
		return attempt.Allowed, nil
	}

	user := attempt.User
	if user == nil {
		return e.rejectLogin(ctx, attempt, ErrInvalidUser.withDetails(loginDetails))
	}

	if user.Type == UserTypeVisitor {
		e.metricInc(MetricLoginAllowed)
		return VerdictAllowed, nil
	}

	if err := checkLoginUser(settings, attempt.Type, user); err != nil {
		return e.rejectLogin(ctx, attempt, err)
	}

	attempt, err = e.onValidateLogin.Run(ctx, attempt)
	if err != nil {
		return e.rejectLogin(ctx, attempt, err)
	}
	if attempt.User != nil {
		user = attempt.User
	}

	if err := e.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return VerdictDenied, fmt.Errorf("update last login: %w", err)
	}

	if e.afterValidateLogin.Len() > 0 {
		queued := attempt
		queued.User = user.Clone()
		e.submit(ctx, "afterValidateLogin", func(taskCtx context.Context) error {
			_, err := e.afterValidateLogin.Run(taskCtx, queued)
			return err
		})
	}

	if attempt.Type != LoginTypeResume && e.apps != nil {
		event := AppEvent{Name: AppEventPostUserLoggedIn, User: user.Clone()}
		if err := e.apps.TriggerEvent(ctx, event); err != nil {
			return VerdictDenied, fmt.Errorf("trigger %s: %w", event.Name, err)
		}
	}

	e.metricInc(MetricLoginAllowed)
	e.emitAudit(ctx, auditEventLoginAllowed, true, user, nil, func() map[string]string {
		return map[string]string{"type": string(attempt.Type)}
	})
	return VerdictAllowed, nil
}

// checkLoginUser applies the built-in account checks to a non-visitor user.
func checkLoginUser(settings Settings, loginType LoginType, user *User) error {
	if user.Type == UserTypeApp {
		return ErrAppUserNotAllowed.withDetails(loginDetails)
	}
	if !user.IsActive() {
		return ErrUserNotActivated.withDetails(loginDetails)
	}
	if user.Roles == nil {
		return ErrUserHasNoRoles.withDetails(loginDetails)
	}
	if !user.HasRole(RoleAdmin) && loginType == LoginTypePassword && settings.EmailVerification && !user.HasVerifiedEmail() {
		return ErrInvalidEmail.withDetails(loginDetails)
	}
	return nil
}

func (e *Engine) rejectLogin(ctx context.Context, attempt LoginAttempt, err error) (LoginVerdict, error) {
	e.metricInc(MetricLoginRejected)
	if e.metrics != nil {
		e.metrics.IncLoginRejection(ErrorCode(err))
	}
	e.emitAudit(ctx, auditEventLoginRejected, false, attempt.User, err, func() map[string]string {
		return map[string]string{
			"type":     string(attempt.Type),
			"username": attempt.throttleUsername(),
		}
	})
	return VerdictDenied, err
}
