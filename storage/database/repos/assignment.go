package dbrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/lms"
)

const insertAssignmentQuery = `
INSERT INTO assignments (id, name, course_id, due_at, published, points_possible,
                         total_submissions, ungraded_count, has_downloaded, local_path, last_synced)
VALUES (:id, :name, :course_id, :due_at, :published, :points_possible,
        :total_submissions, :ungraded_count, :has_downloaded, :local_path, :last_synced)`

// updateAssignmentQuery only touches remote-owned fields; the stat rollups and
// download bookkeeping have their own update paths.
const updateAssignmentQuery = `
UPDATE assignments
SET name = :name, due_at = :due_at, published = :published, points_possible = :points_possible, last_synced = :last_synced
WHERE id = :id`

func (repo *repository) Assignments(ctx context.Context, courseID int64) ([]lms.Assignment, error) {
	query := `
SELECT a.* FROM assignments a
JOIN courses c ON c.id = a.course_id`
	var args []interface{}
	if courseID != 0 {
		query += " WHERE a.course_id = $1"
		args = append(args, courseID)
	}
	query += " ORDER BY c.name, a.name"

	assignments := make([]lms.Assignment, 0)
	if err := repo.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return assignments, nil
}

func (repo *repository) AssignmentByID(ctx context.Context, id int64) (lms.Assignment, error) {
	var a lms.Assignment
	err := repo.db.GetContext(ctx, &a, "SELECT * FROM assignments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return lms.Assignment{}, lms.ErrAssignmentNotFound
	}
	if err != nil {
		return lms.Assignment{}, errors.Wrapf(err, "selecting assignment %d", id)
	}

	course, err := repo.CourseByID(ctx, a.CourseID)
	if err != nil {
		return lms.Assignment{}, err
	}
	a.Course = &course
	return a, nil
}

func (repo *repository) ApplyAssignmentChanges(ctx context.Context, courseID int64, cs lms.AssignmentChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return repo.atomic(ctx, func(tx *sqlx.Tx) error {
		if err := deleteByIDs(ctx, tx, "assignments", cs.DeleteIDs); err != nil {
			return err
		}
		for _, a := range cs.Update {
			if _, err := tx.NamedExecContext(ctx, updateAssignmentQuery, a); err != nil {
				return errors.Wrapf(err, "updating assignment %d", a.ID)
			}
		}
		for _, a := range cs.Insert {
			if _, err := tx.NamedExecContext(ctx, insertAssignmentQuery, a); err != nil {
				return errors.Wrapf(err, "inserting assignment %d", a.ID)
			}
		}
		return nil
	})
}

func (repo *repository) UpdateAssignmentStats(ctx context.Context, id int64, total, ungraded int) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE assignments SET total_submissions = $1, ungraded_count = $2 WHERE id = $3",
		total, ungraded, id)
	return errors.Wrapf(err, "updating stats for assignment %d", id)
}

func (repo *repository) MarkAssignmentDownloaded(ctx context.Context, id int64, path string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE assignments SET has_downloaded = TRUE, local_path = $1 WHERE id = $2",
		path, id)
	return errors.Wrapf(err, "marking assignment %d downloaded", id)
}
