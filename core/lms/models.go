package lms

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Assignment sync states (derived, not persisted).
const (
	SyncStateNever             = "never-synced"
	SyncStateSynced            = "synced"             // assignment row synced, submission detail not fetched
	SyncStateSubmissionsSynced = "submissions-synced" // submission detail fetched
	SyncStateDownloaded        = "downloaded"         // bodies/attachments materialized to disk
)

// Remote workflow states the store cares about.
const (
	CourseStateAvailable     = "available"
	SubmissionStateSubmitted = "submitted"
	SubmissionStateGraded    = "graded"
)

type Course struct {
	ID            int64       `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	CustomName    null.String `db:"custom_name" json:"custom_name"`
	CourseCode    string      `db:"course_code" json:"course_code"`
	WorkflowState string      `db:"workflow_state" json:"workflow_state"`
	IsHidden      bool        `db:"is_hidden" json:"is_hidden"`
	LastSynced    time.Time   `db:"last_synced" json:"last_synced"` // UTC
}

// DisplayName returns the local override when set, the remote name otherwise.
func (c Course) DisplayName() string {
	if name := c.CustomName.String; c.CustomName.Valid && name != "" {
		return name
	}
	return c.Name
}

type Assignment struct {
	ID               int64        `db:"id" json:"id"`
	Name             string       `db:"name" json:"name"`
	CourseID         int64        `db:"course_id" json:"course_id"`
	DueAt            null.Time    `db:"due_at" json:"due_at"`
	Published        bool         `db:"published" json:"published"`
	PointsPossible   null.Float64 `db:"points_possible" json:"points_possible"`
	TotalSubmissions int          `db:"total_submissions" json:"total_submissions"`
	UngradedCount    int          `db:"ungraded_count" json:"ungraded_count"`
	HasDownloaded    bool         `db:"has_downloaded" json:"has_downloaded"`
	LocalPath        null.String  `db:"local_path" json:"local_path"`
	LastSynced       time.Time    `db:"last_synced" json:"last_synced"` // UTC

	Course *Course `db:"-" json:"course,omitempty"`
}

func (a Assignment) IsOverdue(now time.Time) bool {
	return a.DueAt.Valid && a.DueAt.Time.Before(now) && a.Published
}

func (a Assignment) HasUngraded() bool {
	return a.UngradedCount > 0
}

// SyncState derives the assignment's position in the sync lifecycle.
func (a Assignment) SyncState(submissionCount int) string {
	switch {
	case a.LastSynced.IsZero():
		return SyncStateNever
	case a.HasDownloaded:
		return SyncStateDownloaded
	case submissionCount > 0:
		return SyncStateSubmissionsSynced
	default:
		return SyncStateSynced
	}
}

type Submission struct {
	ID            int64       `db:"id" json:"id"`
	UserID        int64       `db:"user_id" json:"user_id"`
	AssignmentID  int64       `db:"assignment_id" json:"assignment_id"`
	Body          null.String `db:"body" json:"body"`
	SubmittedAt   null.Time   `db:"submitted_at" json:"submitted_at"`
	WorkflowState string      `db:"workflow_state" json:"workflow_state"`
	StudentName   string      `db:"student_name" json:"student_name"`
	LocalPath     null.String `db:"local_path" json:"local_path"`
	LastSynced    time.Time   `db:"last_synced" json:"last_synced"` // UTC

	Attachments []Attachment `db:"-" json:"attachments"`
}

type Attachment struct {
	ID           int64       `db:"id" json:"id"`
	SubmissionID int64       `db:"submission_id" json:"submission_id"`
	Filename     string      `db:"filename" json:"filename"`
	URL          string      `db:"url" json:"url"`
	ContentType  string      `db:"content_type" json:"content_type"`
	LocalPath    null.String `db:"local_path" json:"local_path"`
	IsDownloaded bool        `db:"is_downloaded" json:"is_downloaded"`
}

// AnalysisResult is an append-only history row; Payload holds the serialized
// analysis produced by the analysis pipeline.
type AnalysisResult struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	Payload      string    `db:"payload" json:"payload"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
}
