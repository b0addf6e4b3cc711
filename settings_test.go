package goAccounts

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSettingsFromMapOverlaysDefaults(t *testing.T) {
	s, err := SettingsFromMap(map[string]string{
		SettingManuallyApproveNewUsers: "true",
		SettingAllowedDomainsList:      "example.com, corp.example",
		SettingShowSetupWizard:         "completed",
		"Unrelated_Setting":            "ignored",
	})
	if err != nil {
		t.Fatalf("SettingsFromMap: %v", err)
	}
	if !s.ManuallyApproveNewUsers {
		t.Fatal("expected manual approval")
	}
	if s.ShowSetupWizard != SetupWizardCompleted {
		t.Fatalf("unexpected wizard state %q", s.ShowSetupWizard)
	}
	if s.UsersDefaultRoles != "user" {
		t.Fatalf("expected default roles to survive, got %q", s.UsersDefaultRoles)
	}
}

func TestSettingsFromMapRejectsBadBool(t *testing.T) {
	if _, err := SettingsFromMap(map[string]string{SettingLDAPEnable: "maybe"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSettingsMapRoundTrip(t *testing.T) {
	in := DefaultSettings()
	in.AllowedDomainsList = "example.com"
	in.FromEmail = "no-reply@example.com"

	out, err := SettingsFromMap(in.ToMap())
	if err != nil {
		t.Fatalf("SettingsFromMap: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", in, out)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	doc := []byte("Accounts_EmailVerification: true\nSite_Name: Acme Chat\nAccounts_Registration_Users_Default_Roles: user,guest\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile: %v", err)
	}
	if !s.EmailVerification || s.SiteName != "Acme Chat" || s.UsersDefaultRoles != "user,guest" {
		t.Fatalf("unexpected settings %+v", s)
	}
	if !s.SetDefaultAvatar {
		t.Fatal("expected default SetDefaultAvatar=true to survive")
	}
}

func TestStaticSettingsSetupWizard(t *testing.T) {
	src := NewStaticSettings(DefaultSettings())
	if err := src.SetSetupWizard(context.Background(), SetupWizardInProgress); err != nil {
		t.Fatalf("SetSetupWizard: %v", err)
	}
	s, _ := src.Snapshot(context.Background())
	if s.ShowSetupWizard != SetupWizardInProgress {
		t.Fatalf("unexpected state %q", s.ShowSetupWizard)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" user, ,admin ,")
	if !reflect.DeepEqual(got, []string{"user", "admin"}) {
		t.Fatalf("unexpected %v", got)
	}
	if parseCSV("   ") != nil {
		t.Fatal("blank CSV must yield nil")
	}
}
