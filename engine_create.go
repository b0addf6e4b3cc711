package goAccounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PrepareUser runs the creation decision step on draft and returns the
// finalized user. draft is not modified. Side effects performed here (admin
// mail, app event) are not undone when the final domain check fails.
func (e *Engine) PrepareUser(ctx context.Context, opts CreateOptions, draft *User) (*User, error) {
	settings, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.prepareUser(ctx, settings, opts, draft)
}

func (e *Engine) prepareUser(ctx context.Context, settings Settings, opts CreateOptions, draft *User) (*User, error) {
	if draft == nil {
		draft = &User{}
	}
	in := CreateInput{Options: opts, User: *draft.Clone()}

	if !opts.SkipBeforeCreateUserHook {
		out, err := e.beforeCreate.Run(ctx, in)
		if err != nil {
			return nil, e.rejectUser(ctx, &in.User, err)
		}
		in = out
		opts = in.Options
	}

	user := &in.User
	user.Status = StatusOffline
	if user.Active == nil {
		user.Active = Bool(!settings.ManuallyApproveNewUsers)
	}

	if user.Name == "" {
		user.Name = displayName(opts.Profile)
	}

	if user.Services != nil {
		for _, provider := range user.Services.ProviderNames() {
			profile := user.Services.External[provider]
			if user.Name == "" {
				user.Name = profile.Name
				if user.Name == "" {
					user.Name = profile.Username
				}
			}
			if len(user.Emails) == 0 && profile.Email != "" {
				user.Emails = []Email{{Address: profile.Email, Verified: settings.VerifyEmailForExternalAccounts}}
			}
		}
	}

	if !opts.SkipAdminEmail && user.Type != UserTypeVisitor && !user.IsActive() {
		if err := e.notifyAdmins(ctx, settings, opts, user); err != nil {
			return nil, e.rejectUser(ctx, user, fmt.Errorf("admin approval mail: %w", err))
		}
	}

	if !opts.SkipOnCreateUserHook {
		out, err := e.onCreate.Run(ctx, in)
		if err != nil {
			return nil, e.rejectUser(ctx, user, err)
		}
		in = out
		opts = in.Options
		user = &in.User
	}

	if !opts.SkipAppsEvent && e.apps != nil {
		event := AppEvent{
			Name:        AppEventPostUserCreated,
			User:        user.Clone(),
			PerformedBy: actorFromContext(ctx),
		}
		if err := e.apps.TriggerEvent(ctx, event); err != nil {
			return nil, e.rejectUser(ctx, user, fmt.Errorf("trigger %s: %w", event.Name, err))
		}
	}

	if !opts.SkipEmailValidation {
		if err := AllowedEmailDomain(settings, user); err != nil {
			return nil, e.rejectUser(ctx, user, ErrValidationFailed)
		}
	}

	e.metricInc(MetricUserPrepared)
	e.emitAudit(ctx, auditEventUserPrepared, true, user, nil, nil)

	out := *user
	return &out, nil
}

func (e *Engine) rejectUser(ctx context.Context, user *User, err error) error {
	e.metricInc(MetricUserRejected)
	e.emitAudit(ctx, auditEventUserRejected, false, user, err, nil)
	return err
}

// ValidateNewUser applies the new-user checks: service registration policy
// and the domain allow-list. Visitors always pass.
func (e *Engine) ValidateNewUser(ctx context.Context, user *User) error {
	settings, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := validateNewUser(settings, user); err != nil {
		return e.rejectUser(ctx, user, err)
	}
	return nil
}

func validateNewUser(settings Settings, user *User) error {
	if user == nil || user.Type == UserTypeVisitor {
		return nil
	}

	if !settings.AuthServicesRegistrationEnabled && !settings.LDAPEnable && !user.HasPassword() {
		return ErrRegistrationDisabled
	}

	return AllowedEmailDomain(settings, user)
}

// CreateUser builds a draft from opts and runs PrepareUser, ValidateNewUser
// and InsertUser against a single settings snapshot. It returns the new id.
func (e *Engine) CreateUser(ctx context.Context, opts CreateOptions) (string, error) {
	settings, err := e.snapshot(ctx)
	if err != nil {
		return "", err
	}

	draft, err := e.draftFromOptions(opts)
	if err != nil {
		return "", err
	}

	user, err := e.prepareUser(ctx, settings, opts, draft)
	if err != nil {
		return "", err
	}

	if err := validateNewUser(settings, user); err != nil {
		return "", e.rejectUser(ctx, user, err)
	}

	return e.insertUser(ctx, settings, opts, user)
}

func (e *Engine) draftFromOptions(opts CreateOptions) (*User, error) {
	draft := &User{
		Username:    strings.TrimSpace(opts.Username),
		Type:        opts.Type,
		Active:      opts.Active,
		GlobalRoles: append([]string(nil), opts.GlobalRoles...),
		CreatedAt:   time.Now().UTC(),
	}

	if email := strings.TrimSpace(opts.Email); email != "" {
		draft.Emails = []Email{{Address: email}}
	}
	if opts.Name != "" {
		draft.Name = opts.Name
	}

	if opts.Password != "" {
		hash, err := e.hasher.Hash(opts.Password)
		if err != nil {
			e.log.Debug("password rejected", zap.String("username", draft.Username), zap.Error(err))
			return nil, err
		}
		draft.Services = &Services{Password: &PasswordService{Hash: hash}}
	}

	if len(opts.External) > 0 {
		if draft.Services == nil {
			draft.Services = &Services{}
		}
		draft.Services.External = make(map[string]ExternalProfile, len(opts.External))
		for name, profile := range opts.External {
			draft.Services.External[name] = profile
		}
	}

	return draft, nil
}
