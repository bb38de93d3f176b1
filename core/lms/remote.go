package lms

import (
	"context"

	"github.com/volatiletech/null/v8"
)

// Remote snapshot types, as returned by the Canvas adapter. List operations
// paginate transparently and pre-filter by workflow state, so the core only
// ever sees fully materialized, relevant collections.
type (
	RemoteCourse struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		CourseCode    string `json:"course_code"`
		WorkflowState string `json:"workflow_state"`
	}

	RemoteAssignment struct {
		ID             int64        `json:"id"`
		Name           string       `json:"name"`
		CourseID       int64        `json:"course_id"`
		DueAt          null.Time    `json:"due_at"`
		Published      bool         `json:"published"`
		PointsPossible null.Float64 `json:"points_possible"`
	}

	RemoteSubmission struct {
		ID            int64              `json:"id"`
		UserID        int64              `json:"user_id"`
		AssignmentID  int64              `json:"assignment_id"`
		Body          null.String        `json:"body"`
		SubmittedAt   null.Time          `json:"submitted_at"`
		WorkflowState string             `json:"workflow_state"`
		Grade         null.String        `json:"grade"`
		Attachments   []RemoteAttachment `json:"attachments"`
	}

	RemoteAttachment struct {
		ID          int64  `json:"id"`
		Filename    string `json:"filename"`
		URL         string `json:"url"`
		ContentType string `json:"content-type"`
	}

	RemoteUser struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		SortableName string `json:"sortable_name"`
	}
)

// RemoteService is the LMS API capability the sync service depends on.
type RemoteService interface {
	// CurrentCourses returns the active courses, filtered to "available".
	CurrentCourses(ctx context.Context) ([]RemoteCourse, error)
	CourseAssignments(ctx context.Context, courseID int64) ([]RemoteAssignment, error)
	// Assignment fetches a single assignment by its course/assignment id pair.
	Assignment(ctx context.Context, courseID, assignmentID int64) (RemoteAssignment, error)
	// Submissions returns the assignment's submissions filtered to
	// "submitted"/"graded", attachments included.
	Submissions(ctx context.Context, courseID, assignmentID int64) ([]RemoteSubmission, error)
	// Users resolves display names; chunked internally at 100 ids per call.
	Users(ctx context.Context, courseID int64, userIDs []int64) (map[int64]RemoteUser, error)
	AssignmentSubmissionStats(ctx context.Context, courseID, assignmentID int64) (total, ungraded int, err error)
	DownloadAttachment(ctx context.Context, url string) (string, error)
}

// FileStore is the blob sink used by the download/materialization flow.
type FileStore interface {
	WriteText(path, content string) error
	EnsureDir(path string) error
}
