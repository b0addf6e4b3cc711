package goAccounts

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/MrEthical07/goAccounts/hooks"
)

func TestCreateUserFirstAdminOnlyOnce(t *testing.T) {
	te := newTestEngine(t, DefaultSettings())
	ctx := context.Background()

	firstID, err := te.CreateUser(ctx, CreateOptions{Username: "first", Email: "first@x.test", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("CreateUser first failed: %v", err)
	}
	secondID, err := te.CreateUser(ctx, CreateOptions{Username: "second", Email: "second@x.test", Password: "correct-horse-2"})
	if err != nil {
		t.Fatalf("CreateUser second failed: %v", err)
	}

	first, _ := te.store.FindUserByID(ctx, firstID)
	second, _ := te.store.FindUserByID(ctx, secondID)
	if !first.HasRole(RoleAdmin) {
		t.Fatalf("first user must be admin, roles %v", first.Roles)
	}
	if second.HasRole(RoleAdmin) {
		t.Fatalf("second user must not be admin, roles %v", second.Roles)
	}

	s, _ := te.settings.Snapshot(ctx)
	if s.ShowSetupWizard != SetupWizardInProgress {
		t.Fatalf("expected setup wizard in_progress, got %q", s.ShowSetupWizard)
	}
	if got := te.MetricsSnapshot().Counters[MetricFirstAdminPromoted]; got != 1 {
		t.Fatalf("expected one promotion, got %d", got)
	}
}

func TestInsertUserSkipAdminCheck(t *testing.T) {
	te := newTestEngine(t, DefaultSettings())
	ctx := context.Background()

	id, err := te.InsertUser(ctx, CreateOptions{SkipAdminCheck: true}, &User{Username: "bot"})
	if err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	u, _ := te.store.FindUserByID(ctx, id)
	if u.HasRole(RoleAdmin) {
		t.Fatal("SkipAdminCheck must not promote")
	}

	s, _ := te.settings.Snapshot(ctx)
	if s.ShowSetupWizard != SetupWizardPending {
		t.Fatalf("wizard must stay pending, got %q", s.ShowSetupWizard)
	}
}

func TestInsertUserRoles(t *testing.T) {
	s := DefaultSettings()
	s.UsersDefaultRoles = "user, bot"
	s.AuthServicesDefaultRoles = "guest,user"
	te := newTestEngine(t, s)
	ctx := context.Background()

	te.store.putUser(&User{ID: "a0", Type: UserTypeUser, Roles: []string{RoleAdmin}})

	tests := []struct {
		name string
		user *User
		want []string
	}{
		{
			name: "global roles then defaults",
			user: &User{Username: "p", GlobalRoles: []string{"", "livechat-agent", "user"}, Services: &Services{Password: &PasswordService{Hash: "h"}}},
			want: []string{"livechat-agent", "user", "bot"},
		},
		{
			name: "auth service defaults without password",
			user: &User{Username: "s", Services: &Services{External: map[string]ExternalProfile{"google": {}}}},
			want: []string{"guest", "user", "bot"},
		},
		{
			name: "no services",
			user: &User{Username: "n"},
			want: []string{"user", "bot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := te.InsertUser(ctx, CreateOptions{}, tt.user)
			if err != nil {
				t.Fatalf("InsertUser failed: %v", err)
			}
			u, _ := te.store.FindUserByID(ctx, id)
			if !reflect.DeepEqual(u.Roles, tt.want) {
				t.Fatalf("expected roles %v, got %v", tt.want, u.Roles)
			}
			if u.Type != UserTypeUser {
				t.Fatalf("expected default type user, got %q", u.Type)
			}
			if u.GlobalRoles != nil {
				t.Fatal("globalRoles must be cleared before insert")
			}
		})
	}
}

func TestInsertUserEmailTwoFactorOptIn(t *testing.T) {
	s := DefaultSettings()
	te := newTestEngine(t, s)
	ctx := context.Background()

	id, err := te.InsertUser(ctx, CreateOptions{}, &User{Username: "opt"})
	if err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	u, _ := te.store.FindUserByID(ctx, id)
	if u.Services == nil || u.Services.Email2FA == nil || !u.Services.Email2FA.Enabled {
		t.Fatal("expected email 2fa enabled")
	}

	te.settings.Update(func(s *Settings) { s.TwoFactorByEmailAutoOptIn = false })
	id, err = te.InsertUser(ctx, CreateOptions{}, &User{Username: "noopt"})
	if err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	u, _ = te.store.FindUserByID(ctx, id)
	if u.Services != nil && u.Services.Email2FA != nil {
		t.Fatal("expected no email 2fa when opt-in is off")
	}
}

func TestInsertUserDefaultAvatar(t *testing.T) {
	tests := []struct {
		name        string
		suggestions []AvatarSuggestion
		want        string
	}{
		{
			name:        "first non-gravatar wins",
			suggestions: []AvatarSuggestion{{Service: "gravatar"}, {Service: "github"}, {Service: "google"}},
			want:        "github",
		},
		{
			name:        "gravatar as last resort",
			suggestions: []AvatarSuggestion{{Service: "gravatar"}},
			want:        "gravatar",
		},
		{
			name: "none",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, DefaultSettings())
			te.avatars.suggestions = tt.suggestions

			if _, err := te.InsertUser(context.Background(), CreateOptions{}, &User{Username: "pic"}); err != nil {
				t.Fatalf("InsertUser failed: %v", err)
			}
			if tt.want == "" {
				if len(te.avatars.set) != 0 {
					t.Fatalf("expected no avatar, got %v", te.avatars.set)
				}
				return
			}
			if len(te.avatars.set) != 1 || te.avatars.set[0].Service != tt.want {
				t.Fatalf("expected exactly one %s avatar, got %v", tt.want, te.avatars.set)
			}
		})
	}
}

func TestInsertUserAvatarSettingOff(t *testing.T) {
	s := DefaultSettings()
	s.SetDefaultAvatar = false
	te := newTestEngine(t, s)
	te.avatars.suggestions = []AvatarSuggestion{{Service: "github"}}

	if _, err := te.InsertUser(context.Background(), CreateOptions{}, &User{Username: "pic"}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if len(te.avatars.set) != 0 {
		t.Fatal("avatar must not be set when Accounts_SetDefaultAvatar is false")
	}
}

func TestInsertUserDefaultChannels(t *testing.T) {
	te := newTestEngine(t, DefaultSettings())
	ctx := context.Background()

	id, err := te.InsertUser(ctx, CreateOptions{JoinDefaultChannelsSilenced: true}, &User{Username: "joiner"})
	if err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if len(te.channels.joined) != 1 || te.channels.joined[0] != id || !te.channels.silenced[0] {
		t.Fatalf("unexpected joins %v %v", te.channels.joined, te.channels.silenced)
	}

	if _, err := te.InsertUser(ctx, CreateOptions{}, &User{}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if _, err := te.InsertUser(ctx, CreateOptions{SkipDefaultChannels: true}, &User{Username: "quiet"}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if len(te.channels.joined) != 1 {
		t.Fatalf("users without username or with SkipDefaultChannels must not join, got %v", te.channels.joined)
	}
}

func TestInsertUserQueuesAfterCreateUser(t *testing.T) {
	got := make(chan string, 4)
	te := newTestEngine(t, DefaultSettings(), func(b *Builder) {
		b.AfterCreateUser(hooks.Observer(func(_ context.Context, u User) error {
			got <- u.Username
			return nil
		}))
	})
	ctx := context.Background()

	if _, err := te.InsertUser(ctx, CreateOptions{}, &User{Username: "queued"}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if _, err := te.InsertUser(ctx, CreateOptions{}, &User{Username: "guest", Type: UserTypeVisitor}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if _, err := te.InsertUser(ctx, CreateOptions{SkipAfterCreateUserHook: true}, &User{Username: "skipped"}); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}

	te.Close()

	select {
	case name := <-got:
		if name != "queued" {
			t.Fatalf("unexpected hook user %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("AfterCreateUser did not run")
	}
	if len(got) != 0 {
		t.Fatalf("visitor and skipped users must not be queued, got %d extra", len(got))
	}
}
