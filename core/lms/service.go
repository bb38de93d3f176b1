package lms

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmatias/aigrader/core"
)

var (
	// errors
	ErrCourseNotFound     = errors.New("course not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAnalysisNotFound   = errors.New("no analysis result found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		Courses(ctx context.Context, includeHidden bool) ([]Course, error)
		CourseByID(ctx context.Context, id int64) (Course, error)
		// ApplyCourseChanges applies the whole change set in one transaction.
		ApplyCourseChanges(ctx context.Context, cs CourseChangeSet) error
		SetCourseHidden(ctx context.Context, id int64, hidden bool) error
		SetCourseCustomName(ctx context.Context, id int64, name null.String) error
		HasCourses(ctx context.Context) (bool, error)
		// LastSyncTime returns the most recent course sync timestamp, nil if
		// nothing was ever synced.
		LastSyncTime(ctx context.Context) (*time.Time, error)

		// Assignments returns a course's assignments; courseID 0 means all
		// courses. Ordered by course name, then assignment name.
		Assignments(ctx context.Context, courseID int64) ([]Assignment, error)
		// AssignmentByID loads the assignment with its Course attached.
		AssignmentByID(ctx context.Context, id int64) (Assignment, error)
		ApplyAssignmentChanges(ctx context.Context, courseID int64, cs AssignmentChangeSet) error
		UpdateAssignmentStats(ctx context.Context, id int64, total, ungraded int) error
		MarkAssignmentDownloaded(ctx context.Context, id int64, path string) error

		// Submissions returns an assignment's submissions with attachments
		// loaded, ordered by student name.
		Submissions(ctx context.Context, assignmentID int64) ([]Submission, error)
		ApplySubmissionChanges(ctx context.Context, assignmentID int64, cs SubmissionChangeSet) error
		SetSubmissionLocalPath(ctx context.Context, id int64, path string) error
		MarkAttachmentDownloaded(ctx context.Context, id int64, path string) error

		SaveAnalysisResult(ctx context.Context, res AnalysisResult) error
		LatestAnalysisResult(ctx context.Context, assignmentID int64) (AnalysisResult, error)
	}

	Service struct {
		repo        Repository
		remote      RemoteService
		files       FileStore
		logger      core.Logger
		staleAfter  time.Duration
		downloadDir string
	}
)

func NewService(repo Repository, remote RemoteService, files FileStore, logger core.Logger, conf *core.Config) *Service {
	staleAfter := conf.SyncStaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Service{
		repo:        repo,
		remote:      remote,
		files:       files,
		logger:      logger,
		staleAfter:  staleAfter,
		downloadDir: conf.DownloadDir,
	}
}

// Initialize runs the initial full sync when the store is empty.
func (svc *Service) Initialize(ctx context.Context) error {
	has, err := svc.repo.HasCourses(ctx)
	if err != nil {
		return err
	}
	if !has {
		svc.logger.Info("performing initial data sync")
		return svc.SyncAll(ctx)
	}
	return nil
}

// Courses returns the local courses, resyncing first when forced or stale.
func (svc *Service) Courses(ctx context.Context, forceSync, includeHidden bool) ([]Course, error) {
	if forceSync {
		if err := svc.SyncCourses(ctx); err != nil {
			return nil, err
		}
	} else if stale, err := svc.stale(ctx); err != nil {
		return nil, err
	} else if stale {
		if err := svc.SyncCourses(ctx); err != nil {
			return nil, err
		}
	}
	return svc.repo.Courses(ctx, includeHidden)
}

// Course returns one local course.
func (svc *Service) Course(ctx context.Context, id int64) (Course, error) {
	return svc.repo.CourseByID(ctx, id)
}

// Assignments returns the local assignments of a course (all courses when
// courseID is 0), resyncing first when forced.
func (svc *Service) Assignments(ctx context.Context, courseID int64, forceSync bool) ([]Assignment, error) {
	if forceSync {
		if courseID != 0 {
			if err := svc.SyncCourseAssignments(ctx, courseID); err != nil {
				return nil, err
			}
		} else {
			courses, err := svc.repo.Courses(ctx, false)
			if err != nil {
				return nil, err
			}
			for _, c := range courses {
				if err := svc.SyncCourseAssignments(ctx, c.ID); err != nil {
					return nil, err
				}
			}
		}
	}
	return svc.repo.Assignments(ctx, courseID)
}

// Assignment returns one local assignment, pulling its submission detail from
// the remote side first when forced.
func (svc *Service) Assignment(ctx context.Context, id int64, forceSync bool) (Assignment, error) {
	if forceSync {
		if err := svc.SyncAssignmentSubmissions(ctx, id); err != nil {
			return Assignment{}, err
		}
	}
	return svc.repo.AssignmentByID(ctx, id)
}

// LookupAssignment resolves a course/assignment id pair, as parsed from a
// pasted assignment URL. An assignment unknown locally is fetched from the
// remote side, stored, and gets its submissions synced right away; the course
// list is resynced first when the course itself is unknown.
func (svc *Service) LookupAssignment(ctx context.Context, courseID, assignmentID int64) (Assignment, error) {
	a, err := svc.repo.AssignmentByID(ctx, assignmentID)
	if err == nil {
		return a, nil
	}
	if errors.Cause(err) != ErrAssignmentNotFound {
		return Assignment{}, err
	}

	if _, err = svc.repo.CourseByID(ctx, courseID); err != nil {
		if errors.Cause(err) != ErrCourseNotFound {
			return Assignment{}, err
		}
		if err = svc.SyncCourses(ctx); err != nil {
			return Assignment{}, err
		}
		if _, err = svc.repo.CourseByID(ctx, courseID); err != nil {
			return Assignment{}, err
		}
	}

	ra, err := svc.remote.Assignment(ctx, courseID, assignmentID)
	if err != nil {
		return Assignment{}, errors.Wrapf(err, "fetching assignment %d for course %d", assignmentID, courseID)
	}
	cs := AssignmentChangeSet{Insert: []Assignment{newAssignment(courseID, ra, nowFunc().UTC())}}
	if err = svc.repo.ApplyAssignmentChanges(ctx, courseID, cs); err != nil {
		return Assignment{}, errors.Wrapf(err, "storing assignment %d", assignmentID)
	}
	if err = svc.SyncAssignmentSubmissions(ctx, assignmentID); err != nil {
		return Assignment{}, err
	}
	return svc.repo.AssignmentByID(ctx, assignmentID)
}

// Submissions returns the local submissions of an assignment, resyncing first
// when forced.
func (svc *Service) Submissions(ctx context.Context, assignmentID int64, forceSync bool) ([]Submission, error) {
	if forceSync {
		if err := svc.SyncAssignmentSubmissions(ctx, assignmentID); err != nil {
			return nil, err
		}
	}
	return svc.repo.Submissions(ctx, assignmentID)
}

// SyncAll syncs the course list, then every available course's assignments.
// A failure on one course is logged and skipped; a course-list failure aborts.
func (svc *Service) SyncAll(ctx context.Context) error {
	svc.logger.Info("starting full data sync")
	if err := svc.SyncCourses(ctx); err != nil {
		return errors.Wrap(err, "full data sync")
	}

	courses, err := svc.repo.Courses(ctx, false)
	if err != nil {
		return errors.Wrap(err, "full data sync")
	}
	for _, c := range courses {
		if c.WorkflowState != CourseStateAvailable {
			continue
		}
		if err := svc.SyncCourseAssignments(ctx, c.ID); err != nil {
			svc.logger.Warn(fmt.Sprintf("skipping assignments sync for course %d: %v", c.ID, err), err)
		}
	}
	svc.logger.Info("full data sync completed")
	return nil
}

// SyncCourses merges the remote course list into the store. Insert-or-update
// only; no course is ever deleted here.
func (svc *Service) SyncCourses(ctx context.Context) error {
	remote, err := svc.remote.CurrentCourses(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching course list")
	}
	local, err := svc.repo.Courses(ctx, true)
	if err != nil {
		return errors.Wrap(err, "loading local courses")
	}
	cs := MergeCourses(local, remote, nowFunc().UTC())
	if err = svc.repo.ApplyCourseChanges(ctx, cs); err != nil {
		return errors.Wrap(err, "applying course changes")
	}
	svc.logger.Info(fmt.Sprintf("synced %d courses", len(remote)))
	return nil
}

// SyncCourseAssignments reconciles one course's assignments, then refreshes
// each assignment's stat rollups. A rollup failure is logged and skipped so
// the batch continues; the assignment keeps its prior rollups.
func (svc *Service) SyncCourseAssignments(ctx context.Context, courseID int64) error {
	remote, err := svc.remote.CourseAssignments(ctx, courseID)
	if err != nil {
		return errors.Wrapf(err, "fetching assignments for course %d", courseID)
	}
	local, err := svc.repo.Assignments(ctx, courseID)
	if err != nil {
		return errors.Wrapf(err, "loading local assignments for course %d", courseID)
	}
	cs := ReconcileAssignments(courseID, local, remote, nowFunc().UTC())
	if err = svc.repo.ApplyAssignmentChanges(ctx, courseID, cs); err != nil {
		return errors.Wrapf(err, "applying assignment changes for course %d", courseID)
	}

	for _, ra := range remote {
		total, ungraded, sErr := svc.remote.AssignmentSubmissionStats(ctx, courseID, ra.ID)
		if sErr != nil {
			svc.logger.Warn(fmt.Sprintf("failed to update stats for assignment %d", ra.ID), sErr)
			continue
		}
		if sErr = svc.repo.UpdateAssignmentStats(ctx, ra.ID, total, ungraded); sErr != nil {
			svc.logger.Warn(fmt.Sprintf("failed to update stats for assignment %d", ra.ID), sErr)
		}
	}

	svc.logger.Info(fmt.Sprintf("synced %d assignments for course %d", len(remote), courseID))
	return nil
}

// SyncAssignmentSubmissions reconciles one assignment's submissions and their
// attachments, resolving student display names through the user lookup.
func (svc *Service) SyncAssignmentSubmissions(ctx context.Context, assignmentID int64) error {
	a, err := svc.repo.AssignmentByID(ctx, assignmentID)
	if err != nil {
		if errors.Cause(err) == ErrAssignmentNotFound {
			svc.logger.Warn(fmt.Sprintf("assignment %d not found in database", assignmentID))
			return nil
		}
		return err
	}

	remote, err := svc.remote.Submissions(ctx, a.CourseID, assignmentID)
	if err != nil {
		return errors.Wrapf(err, "fetching submissions for assignment %d", assignmentID)
	}
	users, err := svc.remote.Users(ctx, a.CourseID, distinctUserIDs(remote))
	if err != nil {
		return errors.Wrapf(err, "resolving users for assignment %d", assignmentID)
	}
	local, err := svc.repo.Submissions(ctx, assignmentID)
	if err != nil {
		return errors.Wrapf(err, "loading local submissions for assignment %d", assignmentID)
	}

	cs := ReconcileSubmissions(assignmentID, local, remote, users, nowFunc().UTC())
	if err = svc.repo.ApplySubmissionChanges(ctx, assignmentID, cs); err != nil {
		return errors.Wrapf(err, "applying submission changes for assignment %d", assignmentID)
	}
	svc.logger.Info(fmt.Sprintf("synced %d submissions for assignment %d", len(remote), assignmentID))
	return nil
}

func distinctUserIDs(subs []RemoteSubmission) []int64 {
	seen := make(map[int64]struct{}, len(subs))
	ids := make([]int64, 0, len(subs))
	for _, s := range subs {
		if _, ok := seen[s.UserID]; !ok {
			seen[s.UserID] = struct{}{}
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

// DownloadSubmissions materializes an assignment's submission bodies and
// attachments under basePath (the configured download dir when blank) and
// records the download bookkeeping. A failed attachment download is logged
// and skipped.
func (svc *Service) DownloadSubmissions(ctx context.Context, assignmentID int64, basePath string) (string, error) {
	if basePath == "" {
		basePath = svc.downloadDir
	}

	a, err := svc.repo.AssignmentByID(ctx, assignmentID)
	if err != nil {
		return "", err
	}
	var course Course
	if a.Course != nil {
		course = *a.Course
	}

	assignmentPath := filepath.Join(
		basePath,
		core.SanitizeFilename(course.CourseCode+"_"+course.Name),
		core.SanitizeFilename(a.Name),
	)
	if err = svc.files.EnsureDir(assignmentPath); err != nil {
		return "", errors.Wrap(err, "creating assignment directory")
	}

	subs, err := svc.repo.Submissions(ctx, assignmentID)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		svc.logger.Info("no submissions in database, syncing before download")
		if err = svc.SyncAssignmentSubmissions(ctx, assignmentID); err != nil {
			return "", err
		}
		if subs, err = svc.repo.Submissions(ctx, assignmentID); err != nil {
			return "", err
		}
	}

	for _, sub := range subs {
		studentPath := filepath.Join(assignmentPath, core.SanitizeFilename(sub.StudentName))
		if err = svc.files.EnsureDir(studentPath); err != nil {
			return "", errors.Wrap(err, "creating student directory")
		}

		if sub.Body.Valid && sub.Body.String != "" {
			textPath := filepath.Join(studentPath, "submission.txt")
			if err = svc.files.WriteText(textPath, sub.Body.String); err != nil {
				return "", errors.Wrapf(err, "saving text submission for %s", sub.StudentName)
			}
			if err = svc.repo.SetSubmissionLocalPath(ctx, sub.ID, textPath); err != nil {
				return "", err
			}
		}

		for _, at := range sub.Attachments {
			content, dErr := svc.remote.DownloadAttachment(ctx, at.URL)
			if dErr != nil {
				svc.logger.Error(fmt.Sprintf("failed to download attachment %d", at.ID), dErr)
				continue
			}
			filePath := filepath.Join(studentPath, core.SanitizeFilename(at.Filename))
			if dErr = svc.files.WriteText(filePath, content); dErr != nil {
				svc.logger.Error(fmt.Sprintf("failed to save attachment %d", at.ID), dErr)
				continue
			}
			if dErr = svc.repo.MarkAttachmentDownloaded(ctx, at.ID, filePath); dErr != nil {
				svc.logger.Error(fmt.Sprintf("failed to mark attachment %d downloaded", at.ID), dErr)
			}
		}
	}

	if err = svc.repo.MarkAssignmentDownloaded(ctx, assignmentID, assignmentPath); err != nil {
		return "", err
	}
	svc.logger.Info(fmt.Sprintf("download completed, files saved to %s", assignmentPath))
	return assignmentPath, nil
}

// SaveAnalysis appends a new analysis result to the assignment's history.
func (svc *Service) SaveAnalysis(ctx context.Context, assignmentID int64, payload string) error {
	return svc.repo.SaveAnalysisResult(ctx, AnalysisResult{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Payload:      payload,
		CreatedAt:    nowFunc().UTC(),
	})
}

// LatestAnalysis returns the most recent analysis result for the assignment.
func (svc *Service) LatestAnalysis(ctx context.Context, assignmentID int64) (AnalysisResult, error) {
	return svc.repo.LatestAnalysisResult(ctx, assignmentID)
}

func (svc *Service) SetCourseHidden(ctx context.Context, courseID int64, hidden bool) error {
	return svc.repo.SetCourseHidden(ctx, courseID, hidden)
}

func (svc *Service) SetCourseCustomName(ctx context.Context, courseID int64, name string) error {
	trimmed := core.CleanString(name)
	return svc.repo.SetCourseCustomName(ctx, courseID, null.NewString(trimmed, trimmed != ""))
}

func (svc *Service) stale(ctx context.Context) (bool, error) {
	lastSync, err := svc.repo.LastSyncTime(ctx)
	if err != nil {
		return false, err
	}
	return lastSync == nil || nowFunc().UTC().Sub(*lastSync) > svc.staleAfter, nil
}
