package goAccounts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// InsertUser persists a user accepted by PrepareUser and ValidateNewUser and
// applies post-insert state: role assignment, first-admin bootstrap, default
// channels, the queued AfterCreateUser chain and the default avatar.
//
// The first-admin check reads then writes without a lock. Two users created
// concurrently on an empty install can both become admin.
func (e *Engine) InsertUser(ctx context.Context, opts CreateOptions, user *User) (string, error) {
	settings, err := e.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return e.insertUser(ctx, settings, opts, user)
}

func (e *Engine) insertUser(ctx context.Context, settings Settings, opts CreateOptions, in *User) (string, error) {
	if in == nil {
		return "", ErrUserNotFound
	}
	user := in.Clone()

	roles := newUserRoles(settings, user)
	user.GlobalRoles = nil

	if user.Type == "" {
		user.Type = UserTypeUser
	}

	if settings.TwoFactorByEmailAutoOptIn {
		if user.Services == nil {
			user.Services = &Services{}
		}
		user.Services.Email2FA = &Email2FAService{Enabled: true, ChangedAt: time.Now().UTC()}
	}

	if user.Roles == nil {
		user.Roles = []string{}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	id, err := e.users.InsertUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}

	if !opts.SkipAdminCheck {
		hasAdmin, err := e.roles.FindOneByRolesAndType(ctx, RoleAdmin, UserTypeUser)
		if err != nil {
			return "", fmt.Errorf("find admin: %w", err)
		}
		if hasAdmin == nil && !containsString(roles, RoleAdmin) {
			roles = append(roles, RoleAdmin)
			e.metricInc(MetricFirstAdminPromoted)
			e.emitAudit(ctx, auditEventFirstAdminPromoted, true, &User{ID: id, Username: user.Username}, nil, nil)
			if settings.ShowSetupWizard == SetupWizardPending {
				if err := e.settings.SetSetupWizard(ctx, SetupWizardInProgress); err != nil {
					return "", fmt.Errorf("advance setup wizard: %w", err)
				}
			}
		}
	}

	if err := e.roles.AddUserRoles(ctx, id, roles); err != nil {
		return "", fmt.Errorf("add user roles: %w", err)
	}

	stored, err := e.users.FindUserByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("reload user: %w", err)
	}
	if stored == nil {
		return "", ErrUserNotFound
	}

	e.metricInc(MetricUserInserted)
	e.emitAudit(ctx, auditEventUserCreated, true, stored, nil, func() map[string]string {
		return map[string]string{"type": string(stored.Type)}
	})

	if stored.Username == "" {
		return id, nil
	}

	if !opts.SkipDefaultChannels && e.channels != nil {
		if err := e.channels.JoinDefaultChannels(ctx, id, opts.JoinDefaultChannelsSilenced); err != nil {
			return "", fmt.Errorf("join default channels: %w", err)
		}
	}

	if !opts.SkipAfterCreateUserHook && stored.Type != UserTypeVisitor && e.afterCreate.Len() > 0 {
		created := *stored.Clone()
		e.submit(ctx, "afterCreateUser", func(taskCtx context.Context) error {
			_, err := e.afterCreate.Run(taskCtx, created)
			return err
		})
	}

	if !opts.SkipDefaultAvatar && settings.SetDefaultAvatar && e.avatars != nil {
		if err := e.assignDefaultAvatar(ctx, stored); err != nil {
			return "", err
		}
	}

	return id, nil
}

// newUserRoles merges the requested global roles, the auth-service defaults
// for users without a password, and Accounts_Registration_Users_Default_Roles.
// The result is de-duplicated in first-seen order.
func newUserRoles(settings Settings, user *User) []string {
	var requested []string
	for _, r := range user.GlobalRoles {
		if r != "" {
			requested = append(requested, r)
		}
	}

	if user.Services != nil && user.Services.Password == nil {
		requested = append(requested, parseCSV(settings.AuthServicesDefaultRoles)...)
	}

	requested = append(requested, parseCSV(settings.UsersDefaultRoles)...)

	seen := make(map[string]struct{}, len(requested))
	roles := make([]string, 0, len(requested))
	for _, r := range requested {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles
}

// assignDefaultAvatar sets at most one avatar. Gravatar is only used when it
// is the sole suggestion.
func (e *Engine) assignDefaultAvatar(ctx context.Context, user *User) error {
	suggestions, err := e.avatars.Suggestions(ctx, user)
	if err != nil {
		return fmt.Errorf("avatar suggestions: %w", err)
	}

	var pick *AvatarSuggestion
	for i := range suggestions {
		if suggestions[i].Service != "gravatar" {
			pick = &suggestions[i]
			break
		}
	}
	if pick == nil && len(suggestions) == 1 {
		pick = &suggestions[0]
	}
	if pick == nil {
		return nil
	}

	if err := e.avatars.SetAvatarFromService(ctx, user.ID, *pick); err != nil {
		return fmt.Errorf("set avatar from %s: %w", pick.Service, err)
	}
	e.metricInc(MetricDefaultAvatarAssigned)
	e.log.Debug("default avatar assigned", zap.String("user_id", user.ID), zap.String("service", pick.Service))
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
