package inmemdb

import (
	"sync"

	"github.com/tmatias/aigrader/core/lms"
)

// DB is a mutex-guarded in-memory store; a single lock covers all tables so
// cross-table cascades stay consistent.
type DB struct {
	mutex sync.RWMutex

	courses     map[int64]*lms.Course
	assignments map[int64]*lms.Assignment
	submissions map[int64]*lms.Submission
	attachments map[int64]*lms.Attachment
	analyses    []lms.AnalysisResult
}

func Open() (*DB, error) {
	db := &DB{
		courses:     make(map[int64]*lms.Course),
		assignments: make(map[int64]*lms.Assignment),
		submissions: make(map[int64]*lms.Submission),
		attachments: make(map[int64]*lms.Attachment),
	}
	return db, nil
}
