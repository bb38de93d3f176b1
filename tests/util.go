package testutil

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/tmatias/aigrader/core"
	"github.com/tmatias/aigrader/core/lms"
)

// Logger is a core.Logger that writes to the test log and records warnings
// and errors for assertions on failure-isolation paths.
type Logger struct {
	t *testing.T

	mu       sync.Mutex
	warnings []string
	errors   []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.t.Helper()
	l.t.Logf("%s %s %v", level, msg, args)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.mu.Lock()
	l.warnings = append(l.warnings, msg)
	l.mu.Unlock()
	l.log("WARN", msg, args)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
	l.log("ERROR", msg, args)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	l.t.FailNow()
}

func (l *Logger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

func (l *Logger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// Fixtures

func CreateCourse(t *testing.T, repo lms.Repository, id int64, name, code string, lastSynced time.Time) lms.Course {
	t.Helper()
	course := lms.Course{
		ID:            id,
		Name:          name,
		CourseCode:    code,
		WorkflowState: lms.CourseStateAvailable,
		LastSynced:    lastSynced,
	}
	cs := lms.CourseChangeSet{Insert: []lms.Course{course}}
	if err := repo.ApplyCourseChanges(context.Background(), cs); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return course
}

func CreateAssignment(t *testing.T, repo lms.Repository, id, courseID int64, name string, lastSynced time.Time) lms.Assignment {
	t.Helper()
	a := lms.Assignment{
		ID:         id,
		Name:       name,
		CourseID:   courseID,
		Published:  true,
		LastSynced: lastSynced,
	}
	cs := lms.AssignmentChangeSet{Insert: []lms.Assignment{a}}
	if err := repo.ApplyAssignmentChanges(context.Background(), courseID, cs); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

func CreateSubmission(t *testing.T, repo lms.Repository, sub lms.Submission, atts ...lms.Attachment) lms.Submission {
	t.Helper()
	cs := lms.SubmissionChangeSet{
		Insert:            []lms.Submission{sub},
		InsertAttachments: atts,
	}
	if err := repo.ApplySubmissionChanges(context.Background(), sub.AssignmentID, cs); err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	sub.Attachments = atts
	return sub
}

// AssertJSONEqual compares two JSON documents structurally and prints a
// unified diff of the pretty-printed forms on mismatch.
func AssertJSONEqual(t *testing.T, want, got []byte) {
	t.Helper()

	var wantObj, gotObj interface{}
	if err := json.Unmarshal(want, &wantObj); err != nil {
		t.Fatalf("AssertJSONEqual() invalid want: %v", err)
	}
	if err := json.Unmarshal(got, &gotObj); err != nil {
		t.Fatalf("AssertJSONEqual() invalid got: %v", err)
	}
	if reflect.DeepEqual(wantObj, gotObj) {
		return
	}

	wantPretty, _ := json.MarshalIndent(wantObj, "", "  ")
	gotPretty, _ := json.MarshalIndent(gotObj, "", "  ")
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(wantPretty)),
		B:        difflib.SplitLines(string(gotPretty)),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	t.Errorf("JSON mismatch:\n%s", diff)
}
