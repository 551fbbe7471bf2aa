package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func tp(t time.Time) *time.Time { return &t }

// testForest: two stages, jobs beneath each (via phase records, as the build
// API nests them), plus a task and a log-less job.
func testForest() []Record {
	return []Record{
		{ID: "s1", Type: TypeStage, Name: "Build Stage", State: StateCompleted},
		{ID: "p1", ParentID: "s1", Type: "Phase", Name: "Build Stage", State: StateCompleted},
		{ID: "j1", ParentID: "p1", Type: TypeJob, Name: "Build Job", State: StateCompleted, Log: &LogRef{ID: 1}},
		{ID: "t1", ParentID: "j1", Type: TypeTask, Name: "Compile", State: StateCompleted, Log: &LogRef{ID: 2}},
		{ID: "s2", Type: TypeStage, Name: "Test Stage", State: StateCompleted},
		{ID: "p2", ParentID: "s2", Type: "Phase", Name: "Test Stage", State: StateCompleted},
		{ID: "j2", ParentID: "p2", Type: TypeJob, Name: "Unit Tests", State: StateCompleted, Log: &LogRef{ID: 3}},
		{ID: "j3", ParentID: "p2", Type: TypeJob, Name: "Lint", State: StateCompleted},
	}
}

func TestFindRecord_ExactSingleMatch(t *testing.T) {
	rec, err := FindRecord(testForest(), "Build Job", TypeJob, true)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if rec.ID != "j1" {
		t.Errorf("matched %s, want j1", rec.ID)
	}
}

func TestFindRecord_CaseInsensitive(t *testing.T) {
	rec, err := FindRecord(testForest(), "build job", TypeJob, true)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if rec.ID != "j1" {
		t.Errorf("matched %s, want j1", rec.ID)
	}
}

func TestFindRecord_NotFound(t *testing.T) {
	_, err := FindRecord(testForest(), "Deploy Job", TypeJob, true)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestFindRecord_AmbiguousListsAllCandidates(t *testing.T) {
	records := testForest()
	// Substring "Stage" matches both stages (and their phase echoes are
	// filtered out by the kind).
	_, err := FindRecord(records, "Stage", TypeStage, false)
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("want AmbiguousError, got %v", err)
	}
	want := []Candidate{
		{Type: TypeStage, ID: "s1", Name: "Build Stage"},
		{Type: TypeStage, ID: "s2", Name: "Test Stage"},
	}
	if diff := cmp.Diff(want, amb.Candidates); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestFindRecord_KindNarrowsDuplicateNames(t *testing.T) {
	// "Build Stage" names both the stage and its phase echo; the kind filter
	// must disambiguate.
	rec, err := FindRecord(testForest(), "Build Stage", TypeStage, true)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if rec.ID != "s1" {
		t.Errorf("matched %s, want s1", rec.ID)
	}
}

func TestFindRecord_SubstringMode(t *testing.T) {
	rec, err := FindRecord(testForest(), "unit", "", false)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if rec.ID != "j2" {
		t.Errorf("matched %s, want j2", rec.ID)
	}
}

func TestFindStageJobs_CollectsDescendantJobsOnly(t *testing.T) {
	records := testForest()
	stage, err := FindRecord(records, "Test Stage", TypeStage, true)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	jobs := FindStageJobs(records, stage)
	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if diff := cmp.Diff([]string{"j2", "j3"}, ids); diff != "" {
		t.Errorf("stage jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestFindStageJobs_CyclicParentChainTerminates(t *testing.T) {
	records := []Record{
		{ID: "s1", Type: TypeStage, Name: "Stage"},
		{ID: "a", ParentID: "b", Type: TypeJob, Name: "A"},
		{ID: "b", ParentID: "a", Type: TypeJob, Name: "B"},
	}
	if jobs := FindStageJobs(records, &records[0]); len(jobs) != 0 {
		t.Errorf("cyclic records must not match, got %d jobs", len(jobs))
	}
}

func TestEnsureCompleted(t *testing.T) {
	if err := EnsureCompleted(&Record{Name: "ok", State: StateCompleted}); err != nil {
		t.Errorf("completed record: %v", err)
	}

	err := EnsureCompleted(&Record{Name: "busy", State: StateInProgress})
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("want StateError, got %v", err)
	}
	if se.State != StateInProgress {
		t.Errorf("error state = %q, want inProgress", se.State)
	}
}

func TestEnsureLog(t *testing.T) {
	if err := EnsureLog(&Record{Name: "ok", Log: &LogRef{ID: 5}}); err != nil {
		t.Errorf("record with log: %v", err)
	}

	err := EnsureLog(&Record{Name: "silent"})
	var nl *NoLogError
	if !errors.As(err, &nl) {
		t.Fatalf("want NoLogError, got %v", err)
	}

	// A zero log id means no usable remote resource either.
	if err := EnsureLog(&Record{Name: "zero", Log: &LogRef{}}); err == nil {
		t.Error("zero log id should be treated as no log")
	}
}

func TestDurationOf(t *testing.T) {
	start := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	finish := start.Add(95 * time.Second)

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"both timestamps", Record{StartTime: tp(start), FinishTime: tp(finish)}, "1m35s"},
		{"missing finish", Record{StartTime: tp(start)}, ""},
		{"missing start", Record{FinishTime: tp(finish)}, ""},
		{"negative span", Record{StartTime: tp(finish), FinishTime: tp(start)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationOf(&tt.rec); got != tt.want {
				t.Errorf("DurationOf = %q, want %q", got, tt.want)
			}
		})
	}
}
