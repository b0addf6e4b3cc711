package internaldefs

import (
	"sort"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// Family is one exported counter family. Samples inside a family differ
// only by the value of Label; unlabelled families carry a single sample.
type Family struct {
	Name  string
	Help  string
	Label string
}

// CounterDef binds one engine counter to a sample of a family.
type CounterDef struct {
	ID         goAccounts.MetricID
	Family     string
	LabelValue string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goAccounts.MetricID
	Name string
	Help string
}

// Families whose samples come from snapshot fields rather than MetricIDs.
const (
	FamilyTasks           = "accounts_tasks_total"
	FamilyLoginRejections = "accounts_login_rejections_total"
	FamilyAuditDropped    = "accounts_audit_dropped_total"
)

// Families lists every counter family in exposition order.
var Families = []Family{
	{Name: "accounts_users_total", Help: "User drafts by pipeline stage.", Label: "stage"},
	{Name: "accounts_admin_notifications_total", Help: "Activation requests for administrators by result.", Label: "result"},
	{Name: "accounts_first_admin_promoted_total", Help: "Users promoted to admin by first-admin bootstrap."},
	{Name: "accounts_default_avatar_assigned_total", Help: "Default avatars assigned from a suggestion."},
	{Name: "accounts_logins_total", Help: "Login gate decisions by outcome.", Label: "outcome"},
	{Name: FamilyLoginRejections, Help: "Rejected logins by error code.", Label: "code"},
	{Name: "accounts_login_failures_recorded_total", Help: "Failed logins recorded in the limiter."},
	{Name: "accounts_resume_tokens_total", Help: "Resume token lifecycle events.", Label: "event"},
	{Name: "accounts_room_keys_total", Help: "E2E room key writes by result.", Label: "result"},
	{Name: "accounts_password_rehashed_total", Help: "Stored password hashes upgraded after login."},
	{Name: FamilyTasks, Help: "Background pipeline tasks by result.", Label: "result"},
	{Name: FamilyAuditDropped, Help: "Audit events lost to dispatcher backpressure by event type.", Label: "event"},
}

// CounterDefs maps every engine counter onto its family sample.
var CounterDefs = []CounterDef{
	{ID: goAccounts.MetricUserPrepared, Family: "accounts_users_total", LabelValue: "prepared"},
	{ID: goAccounts.MetricUserRejected, Family: "accounts_users_total", LabelValue: "rejected"},
	{ID: goAccounts.MetricUserInserted, Family: "accounts_users_total", LabelValue: "inserted"},
	{ID: goAccounts.MetricAdminNotificationSent, Family: "accounts_admin_notifications_total", LabelValue: "sent"},
	{ID: goAccounts.MetricAdminNotificationSkipped, Family: "accounts_admin_notifications_total", LabelValue: "skipped"},
	{ID: goAccounts.MetricFirstAdminPromoted, Family: "accounts_first_admin_promoted_total"},
	{ID: goAccounts.MetricDefaultAvatarAssigned, Family: "accounts_default_avatar_assigned_total"},
	{ID: goAccounts.MetricLoginAllowed, Family: "accounts_logins_total", LabelValue: "allowed"},
	{ID: goAccounts.MetricLoginRejected, Family: "accounts_logins_total", LabelValue: "rejected"},
	{ID: goAccounts.MetricLoginDeferred, Family: "accounts_logins_total", LabelValue: "deferred"},
	{ID: goAccounts.MetricLoginBlockedIP, Family: "accounts_logins_total", LabelValue: "blocked_ip"},
	{ID: goAccounts.MetricLoginBlockedUser, Family: "accounts_logins_total", LabelValue: "blocked_user"},
	{ID: goAccounts.MetricLoginFailureRecorded, Family: "accounts_login_failures_recorded_total"},
	{ID: goAccounts.MetricResumeTokenIssued, Family: "accounts_resume_tokens_total", LabelValue: "issued"},
	{ID: goAccounts.MetricResumeTokensPruned, Family: "accounts_resume_tokens_total", LabelValue: "pruned"},
	{ID: goAccounts.MetricRoomKeySet, Family: "accounts_room_keys_total", LabelValue: "set"},
	{ID: goAccounts.MetricRoomKeyConflict, Family: "accounts_room_keys_total", LabelValue: "conflict"},
	{ID: goAccounts.MetricPasswordRehashed, Family: "accounts_password_rehashed_total"},
	{ID: goAccounts.MetricTaskDropped, Family: FamilyTasks, LabelValue: "dropped"},
	{ID: goAccounts.MetricTaskFailed, Family: FamilyTasks, LabelValue: "failed"},
}

// Sample is one labelled value of a family.
type Sample struct {
	LabelValue string
	Value      uint64
}

// Samples resolves every sample of family from s, in a stable order.
// Families keyed by error code or event type only list observed keys.
func Samples(family string, s goAccounts.MetricsSnapshot) []Sample {
	switch family {
	case FamilyLoginRejections:
		return keyed(s.LoginRejections)
	case FamilyAuditDropped:
		return keyed(s.AuditDropped)
	}

	var out []Sample
	for _, def := range CounterDefs {
		if def.Family == family {
			out = append(out, Sample{LabelValue: def.LabelValue, Value: s.Counters[def.ID]})
		}
	}
	if family == FamilyTasks {
		out = append(out, Sample{LabelValue: "completed", Value: s.TasksCompleted})
	}
	return out
}

func keyed(m map[string]uint64) []Sample {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Sample, 0, len(keys))
	for _, k := range keys {
		out = append(out, Sample{LabelValue: k, Value: m[k]})
	}
	return out
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccounts.MetricValidateLoginLatency, Name: "accounts_validate_login_latency_seconds", Help: "Login validation gate latency histogram."},
}

// HistogramBounds are the Prometheus le labels for each bucket.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
