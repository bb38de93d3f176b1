package canvassvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core"
	"github.com/tmatias/aigrader/core/lms"
)

const perPage = 100

// userChunkSize caps how many user ids go into a single lookup request.
var userChunkSize = 100

type service struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ lms.RemoteService = (*service)(nil)

func NewService(conf *core.Config) *service {
	return &service{
		baseURL: conf.Canvas.BaseURL,
		token:   conf.Canvas.Token,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (svc *service) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+svc.token)

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling Canvas API")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errors.Errorf("Canvas API returned status %d for %s", res.StatusCode, req.URL.Path)
	}
	if err = json.NewDecoder(res.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "decoding Canvas response")
	}
	return nil
}

// pageURL builds a paginated API url; extra query params are appended as-is.
func (svc *service) pageURL(path string, page int, extra url.Values) string {
	q := make(url.Values)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	for key, vals := range extra {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	return svc.baseURL + "/api/v1" + path + "?" + q.Encode()
}

// CurrentCourses returns the active enrollments, filtered to available
// courses. Pages are fetched sequentially until an empty page comes back.
func (svc *service) CurrentCourses(ctx context.Context) ([]lms.RemoteCourse, error) {
	extra := url.Values{"enrollment_state": []string{"active"}}

	var courses []lms.RemoteCourse
	for page := 1; ; page++ {
		var batch []lms.RemoteCourse
		if err := svc.getJSON(ctx, svc.pageURL("/courses", page, extra), &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			if c.WorkflowState == lms.CourseStateAvailable {
				courses = append(courses, c)
			}
		}
	}
	return courses, nil
}

func (svc *service) CourseAssignments(ctx context.Context, courseID int64) ([]lms.RemoteAssignment, error) {
	path := fmt.Sprintf("/courses/%d/assignments", courseID)

	var assignments []lms.RemoteAssignment
	for page := 1; ; page++ {
		var batch []lms.RemoteAssignment
		if err := svc.getJSON(ctx, svc.pageURL(path, page, nil), &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		assignments = append(assignments, batch...)
	}
	return assignments, nil
}

// Assignment fetches a single assignment by its course/assignment id pair.
func (svc *service) Assignment(ctx context.Context, courseID, assignmentID int64) (lms.RemoteAssignment, error) {
	rawURL := fmt.Sprintf("%s/api/v1/courses/%d/assignments/%d", svc.baseURL, courseID, assignmentID)

	var a lms.RemoteAssignment
	if err := svc.getJSON(ctx, rawURL, &a); err != nil {
		return lms.RemoteAssignment{}, err
	}
	return a, nil
}

// Submissions returns the assignment's submissions filtered to submitted or
// graded, attachments nested in the payload.
func (svc *service) Submissions(ctx context.Context, courseID, assignmentID int64) ([]lms.RemoteSubmission, error) {
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, assignmentID)
	extra := url.Values{"include[]": []string{"attachments"}}

	var subs []lms.RemoteSubmission
	for page := 1; ; page++ {
		var batch []lms.RemoteSubmission
		if err := svc.getJSON(ctx, svc.pageURL(path, page, extra), &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, s := range batch {
			if s.WorkflowState == lms.SubmissionStateSubmitted || s.WorkflowState == lms.SubmissionStateGraded {
				subs = append(subs, s)
			}
		}
	}
	return subs, nil
}

// Users resolves user ids to profiles, chunking the id list so the query
// string stays within API limits.
func (svc *service) Users(ctx context.Context, courseID int64, userIDs []int64) (map[int64]lms.RemoteUser, error) {
	path := fmt.Sprintf("/courses/%d/users", courseID)
	users := make(map[int64]lms.RemoteUser, len(userIDs))

	for start := 0; start < len(userIDs); start += userChunkSize {
		end := start + userChunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		extra := make(url.Values)
		for _, id := range userIDs[start:end] {
			extra.Add("user_ids[]", strconv.FormatInt(id, 10))
		}

		var batch []lms.RemoteUser
		if err := svc.getJSON(ctx, svc.pageURL(path, 1, extra), &batch); err != nil {
			return nil, err
		}
		for _, u := range batch {
			users[u.ID] = u
		}
	}
	return users, nil
}

// AssignmentSubmissionStats counts an assignment's submissions and how many
// still await grading, from a single max-size page.
func (svc *service) AssignmentSubmissionStats(ctx context.Context, courseID, assignmentID int64) (total, ungraded int, err error) {
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, assignmentID)

	var batch []lms.RemoteSubmission
	if err = svc.getJSON(ctx, svc.pageURL(path, 1, nil), &batch); err != nil {
		return 0, 0, err
	}
	for _, s := range batch {
		if s.WorkflowState == "" || s.WorkflowState == "unsubmitted" {
			continue
		}
		total++
		if s.WorkflowState == lms.SubmissionStateSubmitted && s.Grade.String == "" {
			ungraded++
		}
	}
	return total, ungraded, nil
}

// DownloadAttachment fetches an attachment by its pre-signed url.
func (svc *service) DownloadAttachment(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "building download request")
	}

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "downloading attachment")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", errors.Errorf("attachment download returned status %d", res.StatusCode)
	}
	content, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading attachment body")
	}
	return string(content), nil
}
