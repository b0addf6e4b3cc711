package goAccounts

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// OnLogin runs after a successful login. It prunes the user's resume tokens
// down to Config.Resume.MaxLoginTokens, removing the oldest first, and clears
// the per-user failed-login counter.
func (e *Engine) OnLogin(ctx context.Context, attempt LoginAttempt) error {
	user := attempt.User
	if user == nil || user.ID == "" {
		return nil
	}

	if e.limiter != nil && user.Username != "" {
		if err := e.limiter.ResetUser(ctx, user.Username); err != nil {
			e.log.Warn("failed-login counter reset failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if e.tokens == nil {
		return nil
	}

	limit := e.config.Resume.MaxLoginTokens
	tokens, err := e.tokens.ResumeTokens(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load resume tokens: %w", err)
	}
	if len(tokens) < limit {
		return nil
	}

	// oldest first: everything before the limit-th newest token goes.
	cutoff := tokens[len(tokens)-limit].When
	if err := e.tokens.RemoveResumeTokensOlderThan(ctx, user.ID, cutoff); err != nil {
		return fmt.Errorf("prune resume tokens: %w", err)
	}

	e.metricInc(MetricResumeTokensPruned)
	e.emitAudit(ctx, auditEventResumeTokensPruned, true, user, nil, func() map[string]string {
		return map[string]string{"cutoff": cutoff.UTC().Format("2006-01-02T15:04:05.000Z07:00")}
	})
	return nil
}

// OnLoginFailure records a failed attempt against the client address and
// the username.
func (e *Engine) OnLoginFailure(ctx context.Context, attempt LoginAttempt) error {
	if e.limiter == nil {
		return nil
	}

	ip := attempt.Connection.ClientIP()
	username := attempt.throttleUsername()
	if err := e.limiter.RecordFailure(ctx, ip, username); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	e.metricInc(MetricLoginFailureRecorded)
	e.emitAudit(ctx, auditEventLoginFailure, false, attempt.User, attempt.Err, func() map[string]string {
		metadata := map[string]string{"username": username}
		if n, err := e.LoginFailures(ctx, username); err == nil && n > 0 {
			metadata["failures"] = strconv.Itoa(n)
		}
		return metadata
	})
	return nil
}
