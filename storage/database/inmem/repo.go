package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tmatias/aigrader/core/lms"
)

type repository struct {
	db *DB
}

var _ lms.Repository = (*repository)(nil)

func NewRepository(db *DB) *repository {
	return &repository{db: db}
}

func (repo *repository) Courses(_ context.Context, includeHidden bool) ([]lms.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]lms.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if !includeHidden && c.IsHidden {
			continue
		}
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *repository) CourseByID(_ context.Context, id int64) (lms.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return lms.Course{}, lms.ErrCourseNotFound
}

func (repo *repository) ApplyCourseChanges(_ context.Context, cs lms.CourseChangeSet) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, c := range cs.Insert {
		c := c
		repo.db.courses[c.ID] = &c
	}
	for _, c := range cs.Update {
		// change set rows already carry the merged values
		c := c
		repo.db.courses[c.ID] = &c
	}
	return nil
}

func (repo *repository) SetCourseHidden(_ context.Context, id int64, hidden bool) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.courses[id]; ok {
		c.IsHidden = hidden
	}
	return nil
}

func (repo *repository) SetCourseCustomName(_ context.Context, id int64, name null.String) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.courses[id]; ok {
		c.CustomName = name
	}
	return nil
}

func (repo *repository) HasCourses(_ context.Context) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.courses) > 0, nil
}

func (repo *repository) LastSyncTime(_ context.Context) (*time.Time, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var last *time.Time
	for _, c := range repo.db.courses {
		if last == nil || c.LastSynced.After(*last) {
			t := c.LastSynced
			last = &t
		}
	}
	return last, nil
}

func (repo *repository) Assignments(_ context.Context, courseID int64) ([]lms.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]lms.Assignment, 0, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		if courseID != 0 && a.CourseID != courseID {
			continue
		}
		assignments = append(assignments, *a)
	}
	courseName := func(id int64) string {
		if c, ok := repo.db.courses[id]; ok {
			return c.Name
		}
		return ""
	}
	sort.Slice(assignments, func(i, j int) bool {
		ci, cj := courseName(assignments[i].CourseID), courseName(assignments[j].CourseID)
		if ci != cj {
			return ci < cj
		}
		return assignments[i].Name < assignments[j].Name
	})
	return assignments, nil
}

func (repo *repository) AssignmentByID(_ context.Context, id int64) (lms.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return lms.Assignment{}, lms.ErrAssignmentNotFound
	}
	res := *a
	if c, ok := repo.db.courses[a.CourseID]; ok {
		course := *c
		res.Course = &course
	}
	return res, nil
}

func (repo *repository) ApplyAssignmentChanges(_ context.Context, _ int64, cs lms.AssignmentChangeSet) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range cs.DeleteIDs {
		repo.deleteAssignment(id)
	}
	for _, a := range cs.Update {
		a := a
		a.Course = nil
		repo.db.assignments[a.ID] = &a
	}
	for _, a := range cs.Insert {
		a := a
		a.Course = nil
		repo.db.assignments[a.ID] = &a
	}
	return nil
}

func (repo *repository) deleteAssignment(id int64) {
	for sid, s := range repo.db.submissions {
		if s.AssignmentID == id {
			repo.deleteSubmission(sid)
		}
	}
	delete(repo.db.assignments, id)
}

func (repo *repository) deleteSubmission(id int64) {
	for aid, at := range repo.db.attachments {
		if at.SubmissionID == id {
			delete(repo.db.attachments, aid)
		}
	}
	delete(repo.db.submissions, id)
}

func (repo *repository) UpdateAssignmentStats(_ context.Context, id int64, total, ungraded int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if a, ok := repo.db.assignments[id]; ok {
		a.TotalSubmissions = total
		a.UngradedCount = ungraded
	}
	return nil
}

func (repo *repository) MarkAssignmentDownloaded(_ context.Context, id int64, path string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if a, ok := repo.db.assignments[id]; ok {
		a.HasDownloaded = true
		a.LocalPath = null.StringFrom(path)
	}
	return nil
}

func (repo *repository) Submissions(_ context.Context, assignmentID int64) ([]lms.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]lms.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.AssignmentID != assignmentID {
			continue
		}
		sub := *s
		sub.Attachments = nil
		for _, at := range repo.db.attachments {
			if at.SubmissionID == sub.ID {
				sub.Attachments = append(sub.Attachments, *at)
			}
		}
		sort.Slice(sub.Attachments, func(i, j int) bool {
			return sub.Attachments[i].Filename < sub.Attachments[j].Filename
		})
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].StudentName < subs[j].StudentName })
	return subs, nil
}

func (repo *repository) ApplySubmissionChanges(_ context.Context, _ int64, cs lms.SubmissionChangeSet) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range cs.DeleteIDs {
		repo.deleteSubmission(id)
	}
	for _, s := range cs.Update {
		s := s
		s.Attachments = nil
		repo.db.submissions[s.ID] = &s
	}
	for _, s := range cs.Insert {
		s := s
		s.Attachments = nil
		repo.db.submissions[s.ID] = &s
	}

	for _, id := range cs.DeleteAttachmentIDs {
		delete(repo.db.attachments, id)
	}
	for _, at := range cs.UpdateAttachments {
		at := at
		repo.db.attachments[at.ID] = &at
	}
	for _, at := range cs.InsertAttachments {
		at := at
		repo.db.attachments[at.ID] = &at
	}
	return nil
}

func (repo *repository) SetSubmissionLocalPath(_ context.Context, id int64, path string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s, ok := repo.db.submissions[id]; ok {
		s.LocalPath = null.StringFrom(path)
	}
	return nil
}

func (repo *repository) MarkAttachmentDownloaded(_ context.Context, id int64, path string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if at, ok := repo.db.attachments[id]; ok {
		at.IsDownloaded = true
		at.LocalPath = null.StringFrom(path)
	}
	return nil
}

func (repo *repository) SaveAnalysisResult(_ context.Context, res lms.AnalysisResult) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.analyses = append(repo.db.analyses, res)
	return nil
}

func (repo *repository) LatestAnalysisResult(_ context.Context, assignmentID int64) (lms.AnalysisResult, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest *lms.AnalysisResult
	for i := range repo.db.analyses {
		res := repo.db.analyses[i]
		if res.AssignmentID != assignmentID {
			continue
		}
		// ties resolve to the later append
		if latest == nil || !res.CreatedAt.Before(latest.CreatedAt) {
			latest = &res
		}
	}
	if latest == nil {
		return lms.AnalysisResult{}, lms.ErrAnalysisNotFound
	}
	return *latest, nil
}
