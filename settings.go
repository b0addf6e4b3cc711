package goAccounts

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SetupWizardState is the value of the Show_Setup_Wizard setting.
type SetupWizardState string

const (
	SetupWizardPending    SetupWizardState = "pending"
	SetupWizardInProgress SetupWizardState = "in_progress"
	SetupWizardCompleted  SetupWizardState = "completed"
)

// Setting ids as stored by the host's settings collection.
const (
	SettingManuallyApproveNewUsers         = "Accounts_ManuallyApproveNewUsers"
	SettingAllowedDomainsList              = "Accounts_AllowedDomainsList"
	SettingVerifyEmailForExternalAccounts  = "Accounts_Verify_Email_For_External_Accounts"
	SettingEmailVerification               = "Accounts_EmailVerification"
	SettingShowSetupWizard                 = "Show_Setup_Wizard"
	SettingUsersDefaultRoles               = "Accounts_Registration_Users_Default_Roles"
	SettingAuthServicesDefaultRoles        = "Accounts_Registration_AuthenticationServices_Default_Roles"
	SettingAuthServicesRegistrationEnabled = "Accounts_Registration_AuthenticationServices_Enabled"
	SettingLDAPEnable                      = "LDAP_Enable"
	SettingTwoFactorByEmailAutoOptIn       = "Accounts_TwoFactorAuthentication_By_Email_Auto_Opt_In"
	SettingSetDefaultAvatar                = "Accounts_SetDefaultAvatar"
	SettingSiteName                        = "Site_Name"
	SettingSiteURL                         = "Site_Url"
	SettingFromEmail                       = "From_Email"
)

// Settings is a point-in-time snapshot of every setting the pipeline reads.
type Settings struct {
	ManuallyApproveNewUsers         bool             `yaml:"Accounts_ManuallyApproveNewUsers"`
	AllowedDomainsList              string           `yaml:"Accounts_AllowedDomainsList"`
	VerifyEmailForExternalAccounts  bool             `yaml:"Accounts_Verify_Email_For_External_Accounts"`
	EmailVerification               bool             `yaml:"Accounts_EmailVerification"`
	ShowSetupWizard                 SetupWizardState `yaml:"Show_Setup_Wizard"`
	UsersDefaultRoles               string           `yaml:"Accounts_Registration_Users_Default_Roles"`
	AuthServicesDefaultRoles        string           `yaml:"Accounts_Registration_AuthenticationServices_Default_Roles"`
	AuthServicesRegistrationEnabled bool             `yaml:"Accounts_Registration_AuthenticationServices_Enabled"`
	LDAPEnable                      bool             `yaml:"LDAP_Enable"`
	TwoFactorByEmailAutoOptIn       bool             `yaml:"Accounts_TwoFactorAuthentication_By_Email_Auto_Opt_In"`
	SetDefaultAvatar                bool             `yaml:"Accounts_SetDefaultAvatar"`
	SiteName                        string           `yaml:"Site_Name"`
	SiteURL                         string           `yaml:"Site_Url"`
	FromEmail                       string           `yaml:"From_Email"`
}

// DefaultSettings returns the values a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		ManuallyApproveNewUsers:         false,
		VerifyEmailForExternalAccounts:  true,
		EmailVerification:               false,
		ShowSetupWizard:                 SetupWizardPending,
		UsersDefaultRoles:               "user",
		AuthServicesDefaultRoles:        "user",
		AuthServicesRegistrationEnabled: true,
		LDAPEnable:                      false,
		TwoFactorByEmailAutoOptIn:       true,
		SetDefaultAvatar:                true,
		SiteName:                        "Chat",
	}
}

// SettingsFromMap overlays raw setting values, keyed by setting id, onto
// DefaultSettings. Unknown ids are ignored.
func SettingsFromMap(values map[string]string) (Settings, error) {
	s := DefaultSettings()
	for id, raw := range values {
		if err := s.set(id, raw); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// ToMap renders s keyed by setting id.
func (s Settings) ToMap() map[string]string {
	return map[string]string{
		SettingManuallyApproveNewUsers:         strconv.FormatBool(s.ManuallyApproveNewUsers),
		SettingAllowedDomainsList:              s.AllowedDomainsList,
		SettingVerifyEmailForExternalAccounts:  strconv.FormatBool(s.VerifyEmailForExternalAccounts),
		SettingEmailVerification:               strconv.FormatBool(s.EmailVerification),
		SettingShowSetupWizard:                 string(s.ShowSetupWizard),
		SettingUsersDefaultRoles:               s.UsersDefaultRoles,
		SettingAuthServicesDefaultRoles:        s.AuthServicesDefaultRoles,
		SettingAuthServicesRegistrationEnabled: strconv.FormatBool(s.AuthServicesRegistrationEnabled),
		SettingLDAPEnable:                      strconv.FormatBool(s.LDAPEnable),
		SettingTwoFactorByEmailAutoOptIn:       strconv.FormatBool(s.TwoFactorByEmailAutoOptIn),
		SettingSetDefaultAvatar:                strconv.FormatBool(s.SetDefaultAvatar),
		SettingSiteName:                        s.SiteName,
		SettingSiteURL:                         s.SiteURL,
		SettingFromEmail:                       s.FromEmail,
	}
}

func (s *Settings) set(id, raw string) error {
	parseBool := func(dst *bool) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("setting %s: %w", id, err)
		}
		*dst = v
		return nil
	}

	switch id {
	case SettingManuallyApproveNewUsers:
		return parseBool(&s.ManuallyApproveNewUsers)
	case SettingAllowedDomainsList:
		s.AllowedDomainsList = raw
	case SettingVerifyEmailForExternalAccounts:
		return parseBool(&s.VerifyEmailForExternalAccounts)
	case SettingEmailVerification:
		return parseBool(&s.EmailVerification)
	case SettingShowSetupWizard:
		s.ShowSetupWizard = SetupWizardState(raw)
	case SettingUsersDefaultRoles:
		s.UsersDefaultRoles = raw
	case SettingAuthServicesDefaultRoles:
		s.AuthServicesDefaultRoles = raw
	case SettingAuthServicesRegistrationEnabled:
		return parseBool(&s.AuthServicesRegistrationEnabled)
	case SettingLDAPEnable:
		return parseBool(&s.LDAPEnable)
	case SettingTwoFactorByEmailAutoOptIn:
		return parseBool(&s.TwoFactorByEmailAutoOptIn)
	case SettingSetDefaultAvatar:
		return parseBool(&s.SetDefaultAvatar)
	case SettingSiteName:
		s.SiteName = raw
	case SettingSiteURL:
		s.SiteURL = raw
	case SettingFromEmail:
		s.FromEmail = raw
	}
	return nil
}

// LoadSettingsFile reads a YAML document keyed by setting id. Missing keys
// keep their defaults.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return ParseSettingsYAML(data)
}

// ParseSettingsYAML decodes a YAML settings document over DefaultSettings.
func ParseSettingsYAML(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// StaticSettings is an in-process SettingsSource.
type StaticSettings struct {
	mu       sync.RWMutex
	settings Settings
}

// NewStaticSettings returns a source holding s.
func NewStaticSettings(s Settings) *StaticSettings {
	return &StaticSettings{settings: s}
}

// Snapshot returns a copy of the current settings.
func (s *StaticSettings) Snapshot(context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// SetSetupWizard stores state in Show_Setup_Wizard.
func (s *StaticSettings) SetSetupWizard(_ context.Context, state SetupWizardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.ShowSetupWizard = state
	return nil
}

// Update applies fn to the stored settings.
func (s *StaticSettings) Update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
}

// parseCSV splits on commas, trims entries and drops empties.
func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
