package dbrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/lms"
)

const insertSubmissionQuery = `
INSERT INTO submissions (id, user_id, assignment_id, body, submitted_at, workflow_state, student_name, local_path, last_synced)
VALUES (:id, :user_id, :assignment_id, :body, :submitted_at, :workflow_state, :student_name, :local_path, :last_synced)`

const updateSubmissionQuery = `
UPDATE submissions
SET body = :body, submitted_at = :submitted_at, workflow_state = :workflow_state,
    student_name = :student_name, last_synced = :last_synced
WHERE id = :id`

const insertAttachmentQuery = `
INSERT INTO attachments (id, submission_id, filename, url, content_type, local_path, is_downloaded)
VALUES (:id, :submission_id, :filename, :url, :content_type, :local_path, :is_downloaded)`

const updateAttachmentQuery = `
UPDATE attachments
SET filename = :filename, url = :url, content_type = :content_type
WHERE id = :id`

func (repo *repository) Submissions(ctx context.Context, assignmentID int64) ([]lms.Submission, error) {
	subs := make([]lms.Submission, 0)
	err := repo.db.SelectContext(ctx, &subs,
		"SELECT * FROM submissions WHERE assignment_id = $1 ORDER BY student_name", assignmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "selecting submissions for assignment %d", assignmentID)
	}
	if len(subs) == 0 {
		return subs, nil
	}

	subIDs := make([]int64, 0, len(subs))
	for _, s := range subs {
		subIDs = append(subIDs, s.ID)
	}
	query, args, err := sqlx.In("SELECT * FROM attachments WHERE submission_id IN (?) ORDER BY filename", subIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building attachments query")
	}
	var atts []lms.Attachment
	if err = repo.db.SelectContext(ctx, &atts, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrapf(err, "selecting attachments for assignment %d", assignmentID)
	}

	bySubID := make(map[int64][]lms.Attachment, len(subs))
	for _, at := range atts {
		bySubID[at.SubmissionID] = append(bySubID[at.SubmissionID], at)
	}
	for i := range subs {
		subs[i].Attachments = bySubID[subs[i].ID]
	}
	return subs, nil
}

func (repo *repository) ApplySubmissionChanges(ctx context.Context, assignmentID int64, cs lms.SubmissionChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return repo.atomic(ctx, func(tx *sqlx.Tx) error {
		// submission deletes first so their attachments cascade, then rows,
		// then the attachment pass (inserts need their submissions in place)
		if err := deleteByIDs(ctx, tx, "submissions", cs.DeleteIDs); err != nil {
			return err
		}
		for _, s := range cs.Update {
			if _, err := tx.NamedExecContext(ctx, updateSubmissionQuery, s); err != nil {
				return errors.Wrapf(err, "updating submission %d", s.ID)
			}
		}
		for _, s := range cs.Insert {
			if _, err := tx.NamedExecContext(ctx, insertSubmissionQuery, s); err != nil {
				return errors.Wrapf(err, "inserting submission %d", s.ID)
			}
		}

		if err := deleteByIDs(ctx, tx, "attachments", cs.DeleteAttachmentIDs); err != nil {
			return err
		}
		for _, at := range cs.UpdateAttachments {
			if _, err := tx.NamedExecContext(ctx, updateAttachmentQuery, at); err != nil {
				return errors.Wrapf(err, "updating attachment %d", at.ID)
			}
		}
		for _, at := range cs.InsertAttachments {
			if _, err := tx.NamedExecContext(ctx, insertAttachmentQuery, at); err != nil {
				return errors.Wrapf(err, "inserting attachment %d", at.ID)
			}
		}
		return nil
	})
}

func (repo *repository) SetSubmissionLocalPath(ctx context.Context, id int64, path string) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE submissions SET local_path = $1 WHERE id = $2", path, id)
	return errors.Wrapf(err, "setting local path for submission %d", id)
}

func (repo *repository) MarkAttachmentDownloaded(ctx context.Context, id int64, path string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE attachments SET is_downloaded = TRUE, local_path = $1 WHERE id = $2", path, id)
	return errors.Wrapf(err, "marking attachment %d downloaded", id)
}
