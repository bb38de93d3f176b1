package dbrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/lms"
)

const insertAnalysisQuery = `
INSERT INTO analysis_results (id, assignment_id, payload, created_at)
VALUES (:id, :assignment_id, :payload, :created_at)`

func (repo *repository) SaveAnalysisResult(ctx context.Context, res lms.AnalysisResult) error {
	_, err := repo.db.NamedExecContext(ctx, insertAnalysisQuery, res)
	return errors.Wrapf(err, "saving analysis result for assignment %d", res.AssignmentID)
}

func (repo *repository) LatestAnalysisResult(ctx context.Context, assignmentID int64) (lms.AnalysisResult, error) {
	var res lms.AnalysisResult
	err := repo.db.GetContext(ctx, &res,
		"SELECT * FROM analysis_results WHERE assignment_id = $1 ORDER BY created_at DESC LIMIT 1", assignmentID)
	if err == sql.ErrNoRows {
		return lms.AnalysisResult{}, lms.ErrAnalysisNotFound
	}
	if err != nil {
		return lms.AnalysisResult{}, errors.Wrapf(err, "selecting latest analysis for assignment %d", assignmentID)
	}
	return res, nil
}
