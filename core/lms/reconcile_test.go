package lms

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

var syncTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMergeCourses(t *testing.T) {
	local := []Course{
		{ID: 1, Name: "Old Name", CourseCode: "CS101", WorkflowState: "available",
			IsHidden: true, CustomName: null.StringFrom("My CS")},
		{ID: 2, Name: "Gone Course", CourseCode: "CS102", WorkflowState: "available"},
	}
	remote := []RemoteCourse{
		{ID: 1, Name: "New Name", CourseCode: "CS101-B", WorkflowState: "available"},
		{ID: 3, Name: "Fresh Course", CourseCode: "CS103", WorkflowState: "available"},
	}

	cs := MergeCourses(local, remote, syncTime)

	if len(cs.Insert) != 1 || cs.Insert[0].ID != 3 {
		t.Fatalf("Insert = %+v; want course 3", cs.Insert)
	}
	if cs.Insert[0].LastSynced != syncTime {
		t.Errorf("Insert LastSynced = %v; want %v", cs.Insert[0].LastSynced, syncTime)
	}

	if len(cs.Update) != 1 || cs.Update[0].ID != 1 {
		t.Fatalf("Update = %+v; want course 1", cs.Update)
	}
	upd := cs.Update[0]
	if upd.Name != "New Name" || upd.CourseCode != "CS101-B" {
		t.Errorf("remote fields not merged: %+v", upd)
	}
	if !upd.IsHidden || upd.CustomName.String != "My CS" {
		t.Errorf("local-only fields not preserved: %+v", upd)
	}
}

func TestMergeCourses_neverDeletes(t *testing.T) {
	local := []Course{{ID: 1, Name: "Only Local"}}

	cs := MergeCourses(local, nil, syncTime)

	if !cs.Empty() {
		t.Errorf("change set = %+v; want empty", cs)
	}
}

func TestReconcileAssignments(t *testing.T) {
	local := []Assignment{
		{ID: 1, Name: "HW 1", CourseID: 10, TotalSubmissions: 12, UngradedCount: 3,
			HasDownloaded: true, LocalPath: null.StringFrom("/tmp/hw1")},
		{ID: 2, Name: "HW 2", CourseID: 10},
		{ID: 3, Name: "HW 3", CourseID: 10},
	}
	remote := []RemoteAssignment{
		{ID: 1, Name: "HW 1 (revised)", Published: true, PointsPossible: null.Float64From(50)},
		{ID: 3, Name: "HW 3"},
		{ID: 4, Name: "HW 4"},
	}

	cs := ReconcileAssignments(10, local, remote, syncTime)

	if want := []int64{2}; !reflect.DeepEqual(cs.DeleteIDs, want) {
		t.Errorf("DeleteIDs = %v; want %v", cs.DeleteIDs, want)
	}
	if len(cs.Insert) != 1 || cs.Insert[0].ID != 4 || cs.Insert[0].CourseID != 10 {
		t.Fatalf("Insert = %+v; want assignment 4 in course 10", cs.Insert)
	}
	if len(cs.Update) != 2 {
		t.Fatalf("Update = %+v; want 2 rows", cs.Update)
	}

	upd := cs.Update[0]
	if upd.Name != "HW 1 (revised)" || !upd.Published || upd.PointsPossible.Float64 != 50 {
		t.Errorf("remote fields not merged: %+v", upd)
	}
	if upd.TotalSubmissions != 12 || upd.UngradedCount != 3 || !upd.HasDownloaded || upd.LocalPath.String != "/tmp/hw1" {
		t.Errorf("local-only fields not preserved: %+v", upd)
	}
}

func TestReconcileAssignments_emptySides(t *testing.T) {
	t.Run("empty remote deletes all", func(t *testing.T) {
		local := []Assignment{{ID: 1}, {ID: 2}}
		cs := ReconcileAssignments(10, local, nil, syncTime)

		wantIDs := []int64{1, 2}
		sort.Slice(cs.DeleteIDs, func(i, j int) bool { return cs.DeleteIDs[i] < cs.DeleteIDs[j] })
		if !reflect.DeepEqual(cs.DeleteIDs, wantIDs) {
			t.Errorf("DeleteIDs = %v; want %v", cs.DeleteIDs, wantIDs)
		}
		if len(cs.Insert) != 0 || len(cs.Update) != 0 {
			t.Errorf("unexpected inserts/updates: %+v", cs)
		}
	})

	t.Run("empty local inserts all", func(t *testing.T) {
		remote := []RemoteAssignment{{ID: 1}, {ID: 2}}
		cs := ReconcileAssignments(10, nil, remote, syncTime)

		if len(cs.Insert) != 2 || len(cs.Update) != 0 || len(cs.DeleteIDs) != 0 {
			t.Errorf("change set = %+v; want 2 inserts only", cs)
		}
	})
}

func TestReconcileSubmissions(t *testing.T) {
	local := []Submission{
		{ID: 100, UserID: 7, AssignmentID: 1, StudentName: "Alice",
			LocalPath: null.StringFrom("/tmp/alice.txt"),
			Attachments: []Attachment{
				{ID: 1000, SubmissionID: 100, Filename: "old.pdf", URL: "http://old",
					IsDownloaded: true, LocalPath: null.StringFrom("/tmp/old.pdf")},
				{ID: 1001, SubmissionID: 100, Filename: "stale.pdf", URL: "http://stale"},
			}},
		{ID: 101, UserID: 8, AssignmentID: 1, StudentName: "Bob"},
	}
	remote := []RemoteSubmission{
		{ID: 100, UserID: 7, Body: null.StringFrom("updated body"), WorkflowState: "graded",
			Attachments: []RemoteAttachment{
				{ID: 1000, Filename: "new.pdf", URL: "http://new", ContentType: "application/pdf"},
				{ID: 1002, Filename: "extra.pdf", URL: "http://extra"},
			}},
		{ID: 102, UserID: 9, Body: null.StringFrom("fresh"), WorkflowState: "submitted"},
	}
	users := map[int64]RemoteUser{7: {ID: 7, Name: "Alice A."}}

	cs := ReconcileSubmissions(1, local, remote, users, syncTime)

	if want := []int64{101}; !reflect.DeepEqual(cs.DeleteIDs, want) {
		t.Errorf("DeleteIDs = %v; want %v", cs.DeleteIDs, want)
	}

	if len(cs.Insert) != 1 {
		t.Fatalf("Insert = %+v; want 1 row", cs.Insert)
	}
	ins := cs.Insert[0]
	if ins.ID != 102 || ins.AssignmentID != 1 {
		t.Errorf("Insert = %+v", ins)
	}
	if ins.StudentName != "User 9" {
		t.Errorf("StudentName = %q; want fallback %q", ins.StudentName, "User 9")
	}

	if len(cs.Update) != 1 {
		t.Fatalf("Update = %+v; want 1 row", cs.Update)
	}
	upd := cs.Update[0]
	if upd.Body.String != "updated body" || upd.WorkflowState != "graded" || upd.StudentName != "Alice A." {
		t.Errorf("remote fields not merged: %+v", upd)
	}
	if upd.LocalPath.String != "/tmp/alice.txt" {
		t.Errorf("local-only fields not preserved: %+v", upd)
	}
	if upd.Attachments != nil {
		t.Errorf("Update row carries attachments: %+v", upd.Attachments)
	}

	if want := []int64{1001}; !reflect.DeepEqual(cs.DeleteAttachmentIDs, want) {
		t.Errorf("DeleteAttachmentIDs = %v; want %v", cs.DeleteAttachmentIDs, want)
	}
	if len(cs.InsertAttachments) != 1 || cs.InsertAttachments[0].ID != 1002 || cs.InsertAttachments[0].SubmissionID != 100 {
		t.Errorf("InsertAttachments = %+v; want attachment 1002 on submission 100", cs.InsertAttachments)
	}
	if len(cs.UpdateAttachments) != 1 {
		t.Fatalf("UpdateAttachments = %+v; want 1 row", cs.UpdateAttachments)
	}
	updAt := cs.UpdateAttachments[0]
	if updAt.Filename != "new.pdf" || updAt.URL != "http://new" || updAt.ContentType != "application/pdf" {
		t.Errorf("remote fields not merged: %+v", updAt)
	}
	if !updAt.IsDownloaded || updAt.LocalPath.String != "/tmp/old.pdf" {
		t.Errorf("local-only fields not preserved: %+v", updAt)
	}
}

// A second reconciliation against an unchanged snapshot must produce no
// inserts or deletes.
func TestReconcileSubmissions_idempotent(t *testing.T) {
	remote := []RemoteSubmission{
		{ID: 100, UserID: 7, Body: null.StringFrom("body"), WorkflowState: "submitted",
			Attachments: []RemoteAttachment{{ID: 1000, Filename: "a.pdf", URL: "http://a"}}},
	}
	users := map[int64]RemoteUser{7: {ID: 7, Name: "Alice"}}

	first := ReconcileSubmissions(1, nil, remote, users, syncTime)

	local := first.Insert
	local[0].Attachments = first.InsertAttachments
	second := ReconcileSubmissions(1, local, remote, users, syncTime.Add(time.Minute))

	if len(second.Insert) != 0 || len(second.DeleteIDs) != 0 ||
		len(second.InsertAttachments) != 0 || len(second.DeleteAttachmentIDs) != 0 {
		t.Errorf("second pass not idempotent: %+v", second)
	}
	if len(second.Update) != 1 || len(second.UpdateAttachments) != 1 {
		t.Errorf("second pass should refresh existing rows: %+v", second)
	}
}
