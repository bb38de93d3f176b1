package dbrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmatias/aigrader/core/lms"
)

const insertCourseQuery = `
INSERT INTO courses (id, name, custom_name, course_code, workflow_state, is_hidden, last_synced)
VALUES (:id, :name, :custom_name, :course_code, :workflow_state, :is_hidden, :last_synced)`

// updateCourseQuery only touches remote-owned fields; custom_name and
// is_hidden are local-only and survive every sync.
const updateCourseQuery = `
UPDATE courses
SET name = :name, course_code = :course_code, workflow_state = :workflow_state, last_synced = :last_synced
WHERE id = :id`

func (repo *repository) Courses(ctx context.Context, includeHidden bool) ([]lms.Course, error) {
	query := "SELECT * FROM courses"
	if !includeHidden {
		query += " WHERE NOT is_hidden"
	}
	query += " ORDER BY name"

	courses := make([]lms.Course, 0)
	if err := repo.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo *repository) CourseByID(ctx context.Context, id int64) (lms.Course, error) {
	var course lms.Course
	err := repo.db.GetContext(ctx, &course, "SELECT * FROM courses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return lms.Course{}, lms.ErrCourseNotFound
	}
	if err != nil {
		return lms.Course{}, errors.Wrapf(err, "selecting course %d", id)
	}
	return course, nil
}

func (repo *repository) ApplyCourseChanges(ctx context.Context, cs lms.CourseChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return repo.atomic(ctx, func(tx *sqlx.Tx) error {
		for _, c := range cs.Insert {
			if _, err := tx.NamedExecContext(ctx, insertCourseQuery, c); err != nil {
				return errors.Wrapf(err, "inserting course %d", c.ID)
			}
		}
		for _, c := range cs.Update {
			if _, err := tx.NamedExecContext(ctx, updateCourseQuery, c); err != nil {
				return errors.Wrapf(err, "updating course %d", c.ID)
			}
		}
		return nil
	})
}

func (repo *repository) SetCourseHidden(ctx context.Context, id int64, hidden bool) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE courses SET is_hidden = $1 WHERE id = $2", hidden, id)
	return errors.Wrapf(err, "hiding course %d", id)
}

func (repo *repository) SetCourseCustomName(ctx context.Context, id int64, name null.String) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE courses SET custom_name = $1 WHERE id = $2", name, id)
	return errors.Wrapf(err, "renaming course %d", id)
}

func (repo *repository) HasCourses(ctx context.Context) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM courses)")
	return exists, errors.Wrap(err, "checking courses")
}

func (repo *repository) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	if err := repo.db.GetContext(ctx, &last, "SELECT MAX(last_synced) FROM courses"); err != nil {
		return nil, errors.Wrap(err, "selecting last sync time")
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}
