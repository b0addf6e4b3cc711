package goAccounts

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goAccounts/internal/audit"
	"github.com/MrEthical07/goAccounts/mail"
	"go.uber.org/zap"
)

// UserType distinguishes regular users from guests and integrations.
type UserType string

const (
	// UserTypeUser is a regular account.
	UserTypeUser UserType = "user"
	// UserTypeVisitor is a lightweight guest identity exempt from most gates.
	UserTypeVisitor UserType = "visitor"
	// UserTypeApp is an integration account that can never log in interactively.
	UserTypeApp UserType = "app"
)

// UserStatus is the presence state stored on a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
	StatusBusy    UserStatus = "busy"
)

// RoleAdmin is the only role the pipeline interprets.
const RoleAdmin = "admin"

// Email is one address on a user, in the order the user added them.
type Email struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// PasswordService holds the password credential.
type PasswordService struct {
	Hash string `json:"hash"`
}

// Email2FAService holds the email second-factor state.
type Email2FAService struct {
	Enabled   bool      `json:"enabled"`
	ChangedAt time.Time `json:"changedAt"`
}

// ExternalProfile is what an external auth provider reported about the user.
type ExternalProfile struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Services groups credentials and provider profiles. External is keyed by
// provider name.
type Services struct {
	Password *PasswordService          `json:"password,omitempty"`
	Email2FA *Email2FAService          `json:"email2fa,omitempty"`
	External map[string]ExternalProfile `json:"external,omitempty"`
}

// ProviderNames returns the external provider names in ascending order.
func (s *Services) ProviderNames() []string {
	if s == nil || len(s.External) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.External))
	for name := range s.External {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// User is the identity record the pipeline creates and inspects.
//
// Active is tri-state while a draft: nil means "not decided by the caller".
// A nil Roles slice means the roles field is missing; an empty non-nil slice
// means the user has no roles.
type User struct {
	ID          string     `json:"_id"`
	Username    string     `json:"username,omitempty"`
	Name        string     `json:"name,omitempty"`
	Type        UserType   `json:"type,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
	Active      *bool      `json:"active,omitempty"`
	Roles       []string   `json:"roles"`
	Emails      []Email    `json:"emails,omitempty"`
	Services    *Services  `json:"services,omitempty"`
	GlobalRoles []string   `json:"globalRoles,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLogin   time.Time  `json:"lastLogin,omitempty"`
}

// IsActive reports whether Active is set and true.
func (u *User) IsActive() bool {
	return u != nil && u.Active != nil && *u.Active
}

// HasRole reports whether role is in u.Roles.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryEmail returns the first email address, or "".
func (u *User) PrimaryEmail() string {
	if u == nil || len(u.Emails) == 0 {
		return ""
	}
	return u.Emails[0].Address
}

// HasVerifiedEmail reports whether at least one email is verified.
func (u *User) HasVerifiedEmail() bool {
	if u == nil {
		return false
	}
	for _, e := range u.Emails {
		if e.Verified {
			return true
		}
	}
	return false
}

// HasPassword reports whether the user carries a password credential.
func (u *User) HasPassword() bool {
	return u != nil && u.Services != nil && u.Services.Password != nil
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Active != nil {
		active := *u.Active
		out.Active = &active
	}
	if u.Roles != nil {
		out.Roles = append([]string{}, u.Roles...)
	}
	if u.Emails != nil {
		out.Emails = append([]Email{}, u.Emails...)
	}
	if u.GlobalRoles != nil {
		out.GlobalRoles = append([]string{}, u.GlobalRoles...)
	}
	if u.Services != nil {
		svc := *u.Services
		if u.Services.Password != nil {
			p := *u.Services.Password
			svc.Password = &p
		}
		if u.Services.Email2FA != nil {
			e := *u.Services.Email2FA
			svc.Email2FA = &e
		}
		if u.Services.External != nil {
			svc.External = make(map[string]ExternalProfile, len(u.Services.External))
			for k, v := range u.Services.External {
				svc.External[k] = v
			}
		}
		out.Services = &svc
	}
	return &out
}

// Bool returns a pointer to v, for draft fields that distinguish unset.
func Bool(v bool) *bool {
	return &v
}

// Locale is a provider's preferred locale.
type Locale struct {
	Language string `json:"language"`
	Country  string `json:"country"`
}

// LocalizedName is one half of a two-field provider name. Providers using
// the older format set only Plain.
type LocalizedName struct {
	Plain           string            `json:"plain,omitempty"`
	Localized       map[string]string `json:"localized,omitempty"`
	PreferredLocale *Locale           `json:"preferredLocale,omitempty"`
}

// Profile carries the display name supplied at creation.
type Profile struct {
	Name      string         `json:"name,omitempty"`
	FirstName *LocalizedName `json:"firstName,omitempty"`
	LastName  *LocalizedName `json:"lastName,omitempty"`
}

// CreateOptions are the caller's creation inputs and step opt-outs.
type CreateOptions struct {
	Username string
	Email    string
	Password string
	Name     string
	// Reason is shown to admins in the approval mail.
	Reason  string
	Profile *Profile
	Type    UserType
	// Active overrides the manual-approval default when non-nil.
	Active      *bool
	GlobalRoles []string
	External    map[string]ExternalProfile

	SkipBeforeCreateUserHook    bool
	SkipOnCreateUserHook        bool
	SkipAfterCreateUserHook     bool
	SkipAppsEvent               bool
	SkipEmailValidation         bool
	SkipAdminEmail              bool
	SkipAdminCheck              bool
	SkipDefaultAvatar           bool
	SkipDefaultChannels         bool
	JoinDefaultChannelsSilenced bool
}

// CreateInput is the value carried through the BeforeCreateUser and
// OnCreateUser hook chains. Handlers may rewrite User.
type CreateInput struct {
	Options CreateOptions
	User    User
}

// LoginType names the login method.
type LoginType string

const (
	LoginTypePassword LoginType = "password"
	LoginTypeResume   LoginType = "resume"
)

// LoginVerdict is the framework-level tri-state allowed flag.
type LoginVerdict uint8

const (
	VerdictUnset LoginVerdict = iota
	VerdictDenied
	VerdictAllowed
)

func (v LoginVerdict) String() string {
	switch v {
	case VerdictDenied:
		return "denied"
	case VerdictAllowed:
		return "allowed"
	default:
		return "unset"
	}
}

// Connection describes where a login came from.
type Connection struct {
	ClientAddress string
	HTTPHeaders   map[string]string
}

// ClientIP returns ClientAddress, falling back to the x-real-ip header.
func (c Connection) ClientIP() string {
	if c.ClientAddress != "" {
		return c.ClientAddress
	}
	for k, v := range c.HTTPHeaders {
		if strings.EqualFold(k, "x-real-ip") {
			return v
		}
	}
	return ""
}

// LoginAttempt is the transient value validated by the login gate.
// Username is the identifier the client supplied and is used for per-user
// throttling when User is nil.
type LoginAttempt struct {
	Type       LoginType
	User       *User
	Username   string
	Connection Connection
	Allowed    LoginVerdict
	Err        error
}

func (a LoginAttempt) throttleUsername() string {
	if a.User != nil && a.User.Username != "" {
		return a.User.Username
	}
	return a.Username
}

// ResumeToken is one stored session token.
type ResumeToken struct {
	HashedToken string    `json:"hashedToken"`
	When        time.Time `json:"when"`
}

// LoginResult is returned by the login drivers. Token is empty for resume
// logins, which reuse the presented token.
type LoginResult struct {
	UserID string
	Token  string
}

// Room is the part of a chat room the e2e key method touches.
type Room struct {
	ID       string
	E2EKeyID string
}

// AvatarSuggestion is one candidate avatar from a provider.
type AvatarSuggestion struct {
	Service     string
	Blob        []byte
	ContentType string
	URL         string
}

// AppEventName names an app-engine lifecycle event.
type AppEventName string

const (
	AppEventPostUserCreated  AppEventName = "IPostUserCreated"
	AppEventPostUserLoggedIn AppEventName = "IPostUserLoggedIn"
)

// AppEvent is delivered to the app-event trigger.
type AppEvent struct {
	Name        AppEventName
	User        *User
	PerformedBy *User
}

// SettingsSource yields a settings snapshot per pipeline invocation.
type SettingsSource interface {
	Snapshot(ctx context.Context) (Settings, error)
	SetSetupWizard(ctx context.Context, state SetupWizardState) error
}

// UserStore persists users.
type UserStore interface {
	InsertUser(ctx context.Context, user *User) (string, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordHashUpdater is optionally implemented by a UserStore. When present,
// password logins against a hash made with weaker parameters rewrite it.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// RoleStore is the slice of role management the pipeline needs.
type RoleStore interface {
	FindUsersInRole(ctx context.Context, role string) ([]User, error)
	FindOneByRolesAndType(ctx context.Context, role string, userType UserType) (*User, error)
	AddUserRoles(ctx context.Context, userID string, roles []string) error
}

// ResumeTokenStore persists hashed resume tokens per user.
// ResumeTokens returns tokens oldest first.
type ResumeTokenStore interface {
	AddResumeToken(ctx context.Context, userID string, token ResumeToken) error
	ResumeTokens(ctx context.Context, userID string) ([]ResumeToken, error)
	RemoveResumeTokensOlderThan(ctx context.Context, userID string, cutoff time.Time) error
	FindUserIDByResumeToken(ctx context.Context, hashedToken string) (string, error)
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// AppEventTrigger forwards lifecycle events to installed apps.
type AppEventTrigger interface {
	TriggerEvent(ctx context.Context, event AppEvent) error
}

// LoginLimiter tracks failed logins per client address and username.
type LoginLimiter interface {
	AllowIP(ctx context.Context, ip string) (bool, error)
	AllowUser(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, ip, username string) error
	ResetUser(ctx context.Context, username string) error
}

// LoginFailureCounter is implemented by limiters that can report the
// current failed-login count for a username.
type LoginFailureCounter interface {
	Failures(ctx context.Context, username string) (int, error)
}

// ChannelJoiner adds a new user to the default channels.
type ChannelJoiner interface {
	JoinDefaultChannels(ctx context.Context, userID string, silenced bool) error
}

// AvatarService suggests and assigns avatars. Suggestions are ordered by
// preference.
type AvatarService interface {
	Suggestions(ctx context.Context, user *User) ([]AvatarSuggestion, error)
	SetAvatarFromService(ctx context.Context, userID string, suggestion AvatarSuggestion) error
}

// RoomStore reads rooms and writes the e2e key id. SetE2EKeyID must only
// write when the stored key id is empty and return ErrRoomKeyConflict
// otherwise.
type RoomStore interface {
	FindRoomByID(ctx context.Context, roomID string) (*Room, error)
	SetE2EKeyID(ctx context.Context, roomID, keyID string) error
}

// RoomAccess decides whether a user may act on a room.
type RoomAccess interface {
	CanAccessRoom(ctx context.Context, roomID, userID string) (bool, error)
}

// AuditEvent is the canonical audit event model.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through zap.
type ZapSink = internalaudit.ZapSink

// NewZapSink returns a sink that logs events to log.
func NewZapSink(log *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(log)
}

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
