package lms

import (
	"fmt"
	"time"
)

// Reconciliation computes minimal change sets between a remote snapshot and
// the local rows of one scope. The functions are pure; Repository.Apply*
// applies a change set atomically. Remote-owned fields are merged onto a copy
// of the local row, so local-only fields (hidden flag, custom name, download
// bookkeeping, stat rollups) pass through untouched.

type CourseChangeSet struct {
	Insert []Course
	Update []Course
}

func (cs CourseChangeSet) Empty() bool {
	return len(cs.Insert) == 0 && len(cs.Update) == 0
}

// MergeCourses is insert-or-update only: courses absent from the remote list
// are never deleted, so hidden or concluded courses stay addressable through
// their history. Full deletion reconciliation applies to assignments and
// submissions only.
func MergeCourses(local []Course, remote []RemoteCourse, now time.Time) CourseChangeSet {
	byID := make(map[int64]Course, len(local))
	for _, c := range local {
		byID[c.ID] = c
	}

	var cs CourseChangeSet
	for _, rc := range remote {
		if existing, ok := byID[rc.ID]; ok {
			existing.Name = rc.Name
			existing.CourseCode = rc.CourseCode
			existing.WorkflowState = rc.WorkflowState
			existing.LastSynced = now
			cs.Update = append(cs.Update, existing)
		} else {
			cs.Insert = append(cs.Insert, Course{
				ID:            rc.ID,
				Name:          rc.Name,
				CourseCode:    rc.CourseCode,
				WorkflowState: rc.WorkflowState,
				LastSynced:    now,
			})
		}
	}
	return cs
}

type AssignmentChangeSet struct {
	Insert    []Assignment
	Update    []Assignment
	DeleteIDs []int64
}

func (cs AssignmentChangeSet) Empty() bool {
	return len(cs.Insert) == 0 && len(cs.Update) == 0 && len(cs.DeleteIDs) == 0
}

// ReconcileAssignments diffs the remote snapshot of a course's assignments
// against the local rows of the same course. Local rows missing from the
// snapshot are deleted (their submissions cascade with them).
func ReconcileAssignments(courseID int64, local []Assignment, remote []RemoteAssignment, now time.Time) AssignmentChangeSet {
	byID := make(map[int64]Assignment, len(local))
	for _, a := range local {
		byID[a.ID] = a
	}
	remoteIDs := make(map[int64]struct{}, len(remote))
	for _, ra := range remote {
		remoteIDs[ra.ID] = struct{}{}
	}

	var cs AssignmentChangeSet
	for _, a := range local {
		if _, ok := remoteIDs[a.ID]; !ok {
			cs.DeleteIDs = append(cs.DeleteIDs, a.ID)
		}
	}
	for _, ra := range remote {
		if existing, ok := byID[ra.ID]; ok {
			existing.Name = ra.Name
			existing.DueAt = ra.DueAt
			existing.Published = ra.Published
			existing.PointsPossible = ra.PointsPossible
			existing.LastSynced = now
			cs.Update = append(cs.Update, existing)
		} else {
			cs.Insert = append(cs.Insert, newAssignment(courseID, ra, now))
		}
	}
	return cs
}

func newAssignment(courseID int64, ra RemoteAssignment, now time.Time) Assignment {
	return Assignment{
		ID:             ra.ID,
		Name:           ra.Name,
		CourseID:       courseID,
		DueAt:          ra.DueAt,
		Published:      ra.Published,
		PointsPossible: ra.PointsPossible,
		LastSynced:     now,
	}
}

type SubmissionChangeSet struct {
	Insert    []Submission
	Update    []Submission
	DeleteIDs []int64

	InsertAttachments   []Attachment
	UpdateAttachments   []Attachment
	DeleteAttachmentIDs []int64
}

func (cs SubmissionChangeSet) Empty() bool {
	return len(cs.Insert) == 0 && len(cs.Update) == 0 && len(cs.DeleteIDs) == 0 &&
		len(cs.InsertAttachments) == 0 && len(cs.UpdateAttachments) == 0 && len(cs.DeleteAttachmentIDs) == 0
}

// ReconcileSubmissions diffs the remote snapshot of an assignment's
// submissions (attachments nested) against the local rows of the same
// assignment. The student display name is denormalized from the user lookup
// at reconcile time; unknown users fall back to "User <id>".
func ReconcileSubmissions(assignmentID int64, local []Submission, remote []RemoteSubmission, users map[int64]RemoteUser, now time.Time) SubmissionChangeSet {
	byID := make(map[int64]Submission, len(local))
	for _, s := range local {
		byID[s.ID] = s
	}
	remoteIDs := make(map[int64]struct{}, len(remote))
	for _, rs := range remote {
		remoteIDs[rs.ID] = struct{}{}
	}

	var cs SubmissionChangeSet
	for _, s := range local {
		if _, ok := remoteIDs[s.ID]; !ok {
			// attachments go with the cascade
			cs.DeleteIDs = append(cs.DeleteIDs, s.ID)
		}
	}

	for _, rs := range remote {
		studentName := fmt.Sprintf("User %d", rs.UserID)
		if usr, ok := users[rs.UserID]; ok {
			studentName = usr.Name
		}

		existing, ok := byID[rs.ID]
		if !ok {
			cs.Insert = append(cs.Insert, Submission{
				ID:            rs.ID,
				UserID:        rs.UserID,
				AssignmentID:  assignmentID,
				Body:          rs.Body,
				SubmittedAt:   rs.SubmittedAt,
				WorkflowState: rs.WorkflowState,
				StudentName:   studentName,
				LastSynced:    now,
			})
			for _, ra := range rs.Attachments {
				cs.InsertAttachments = append(cs.InsertAttachments, newAttachment(ra, rs.ID))
			}
			continue
		}

		existing.Body = rs.Body
		existing.SubmittedAt = rs.SubmittedAt
		existing.WorkflowState = rs.WorkflowState
		existing.StudentName = studentName
		existing.LastSynced = now

		// nested pass: same insert/update/delete-by-identity rule, keyed by
		// attachment identity within the submission
		attByID := make(map[int64]Attachment, len(existing.Attachments))
		for _, at := range existing.Attachments {
			attByID[at.ID] = at
		}
		remoteAttIDs := make(map[int64]struct{}, len(rs.Attachments))
		for _, ra := range rs.Attachments {
			remoteAttIDs[ra.ID] = struct{}{}
		}
		for _, at := range existing.Attachments {
			if _, found := remoteAttIDs[at.ID]; !found {
				cs.DeleteAttachmentIDs = append(cs.DeleteAttachmentIDs, at.ID)
			}
		}
		for _, ra := range rs.Attachments {
			if at, found := attByID[ra.ID]; found {
				at.Filename = ra.Filename
				at.URL = ra.URL
				at.ContentType = ra.ContentType
				cs.UpdateAttachments = append(cs.UpdateAttachments, at)
			} else {
				cs.InsertAttachments = append(cs.InsertAttachments, newAttachment(ra, rs.ID))
			}
		}

		existing.Attachments = nil
		cs.Update = append(cs.Update, existing)
	}
	return cs
}

func newAttachment(ra RemoteAttachment, submissionID int64) Attachment {
	return Attachment{
		ID:           ra.ID,
		SubmissionID: submissionID,
		Filename:     ra.Filename,
		URL:          ra.URL,
		ContentType:  ra.ContentType,
	}
}
