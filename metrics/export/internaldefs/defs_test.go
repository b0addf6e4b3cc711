package internaldefs

import (
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCounterDefsReferenceKnownFamilies(t *testing.T) {
	families := map[string]Family{}
	for _, f := range Families {
		if _, dup := families[f.Name]; dup {
			t.Fatalf("duplicate family %s", f.Name)
		}
		families[f.Name] = f
	}

	seen := map[string]bool{}
	for _, def := range CounterDefs {
		f, ok := families[def.Family]
		if !ok {
			t.Fatalf("counter %d uses unknown family %s", def.ID, def.Family)
		}
		if (f.Label == "") != (def.LabelValue == "") {
			t.Fatalf("family %s label %q does not match sample %q", f.Name, f.Label, def.LabelValue)
		}
		key := def.Family + "/" + def.LabelValue
		if seen[key] {
			t.Fatalf("duplicate sample %s", key)
		}
		seen[key] = true
	}
	if len(HistogramBounds) != len(HistogramBoundSuffix) {
		t.Fatal("bound labels and suffixes must align")
	}
}

func TestSamplesResolvesSnapshotFields(t *testing.T) {
	s := goAccounts.MetricsSnapshot{
		Counters: map[goAccounts.MetricID]uint64{
			goAccounts.MetricTaskFailed: 2,
		},
		LoginRejections: map[string]uint64{"error-user-not-activated": 1, "error-app-user-is-not-allowed-to-login": 4},
		TasksCompleted:  9,
	}

	tasks := Samples(FamilyTasks, s)
	if len(tasks) != 3 || tasks[1].LabelValue != "failed" || tasks[1].Value != 2 || tasks[2].LabelValue != "completed" || tasks[2].Value != 9 {
		t.Fatalf("unexpected task samples %+v", tasks)
	}

	rejections := Samples(FamilyLoginRejections, s)
	if len(rejections) != 2 || rejections[0].LabelValue != "error-app-user-is-not-allowed-to-login" {
		t.Fatalf("expected sorted rejection codes, got %+v", rejections)
	}

	if got := Samples(FamilyAuditDropped, s); len(got) != 0 {
		t.Fatalf("expected no audit samples, got %+v", got)
	}
}
