package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/tmatias/aigrader/core/analysis"
	"github.com/tmatias/aigrader/core/lms"
	testutil "github.com/tmatias/aigrader/tests"
)

func TestCoursesAPI(t *testing.T) {
	remote := &fakeRemote{}
	srv, repo := initServer(t, remote)

	now := time.Now().UTC()
	bio := testutil.CreateCourse(t, repo, 1, "Biology", "BIO1", now)
	chem := testutil.CreateCourse(t, repo, 2, "Chemistry", "CHEM1", now)
	if err := repo.SetCourseHidden(context.Background(), chem.ID, true); err != nil {
		t.Fatalf("SetCourseHidden() failed: %v", err)
	}
	chem.IsHidden = true

	tests := []httpTest{
		{
			name: "query hides hidden courses", method: http.MethodGet, path: "/v1/courses",
			wantCode: http.StatusOK, wantData: marshallObj(t, []lms.Course{bio}),
		},
		{
			name: "query with include_hidden", method: http.MethodGet, path: "/v1/courses?include_hidden=true",
			wantCode: http.StatusOK, wantData: marshallObj(t, []lms.Course{bio, chem}),
		},
		{
			name: "patch unknown course", method: http.MethodPatch, path: "/v1/courses/99",
			body: []byte(`{"hidden":true}`), wantCode: http.StatusNotFound,
		},
		{
			name: "patch invalid id", method: http.MethodPatch, path: "/v1/courses/abc",
			body: []byte(`{"hidden":true}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "patch oversized custom name", method: http.MethodPatch, path: "/v1/courses/1",
			body:     []byte(`{"custom_name":"` + strings.Repeat("x", 501) + `"}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("patch sets custom name and visibility", func(t *testing.T) {
		req, rec := newRequest(http.MethodPatch, "/v1/courses/1", []byte(`{"hidden":true,"custom_name":"My Bio"}`))
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var got lms.Course
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.IsHidden)
		assert.Equal(t, "My Bio", got.CustomName.String)
	})

	t.Run("patch with empty body changes nothing", func(t *testing.T) {
		req, rec := newRequest(http.MethodPatch, "/v1/courses/1", []byte(`{}`))
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var got lms.Course
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.IsHidden)
		assert.Equal(t, "My Bio", got.CustomName.String)
	})
}

func TestAssignmentsAPI(t *testing.T) {
	remote := &fakeRemote{
		assignments: map[int64][]lms.RemoteAssignment{
			1: {{ID: 20, Name: "Essay 2", CourseID: 1, Published: true}},
		},
		submissions: map[int64][]lms.RemoteSubmission{
			10: {{ID: 100, UserID: 7, Body: null.StringFrom("essay text"), WorkflowState: "submitted"}},
			20: {{ID: 200, UserID: 7, Body: null.StringFrom("second essay"), WorkflowState: "submitted"}},
		},
		users: map[int64]lms.RemoteUser{7: {ID: 7, Name: "Alice"}},
	}
	srv, repo := initServer(t, remote)

	now := time.Now().UTC()
	testutil.CreateCourse(t, repo, 1, "Biology", "BIO1", now)
	testutil.CreateAssignment(t, repo, 10, 1, "Essay 1", now)

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/v1/assignments/10", wantCode: http.StatusOK},
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/assignments/99", wantCode: http.StatusNotFound},
		{name: "course assignments", method: http.MethodGet, path: "/v1/courses/1/assignments", wantCode: http.StatusOK},
		{name: "all assignments", method: http.MethodGet, path: "/v1/assignments", wantCode: http.StatusOK},
		{
			name: "lookup", method: http.MethodGet,
			path:     "/v1/assignments/lookup?url=https://snow.instructure.com/courses/1/assignments/10",
			wantCode: http.StatusOK,
		},
		{
			name: "lookup bad url", method: http.MethodGet, path: "/v1/assignments/lookup?url=not-a-canvas-url",
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"url": "invalid Canvas assignment URL format"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("lookup unknown assignment fetches it from the remote side", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/assignments/lookup?url=https://snow.instructure.com/courses/1/assignments/20")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var a lms.Assignment
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
		assert.Equal(t, int64(20), a.ID)
		assert.Equal(t, "Essay 2", a.Name)

		req, rec = newRequest(http.MethodGet, "/v1/assignments/20/submissions")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var subs []lms.Submission
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
		if assert.Len(t, subs, 1) {
			assert.Equal(t, "Alice", subs[0].StudentName)
		}
	})

	t.Run("retrieve with force_sync pulls submissions", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/assignments/10?force_sync=true")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		req, rec = newRequest(http.MethodGet, "/v1/assignments/10/submissions")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var subs []lms.Submission
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
		if assert.Len(t, subs, 1) {
			assert.Equal(t, "Alice", subs[0].StudentName)
			assert.Equal(t, "essay text", subs[0].Body.String)
		}
	})
}

func TestAnalysisAPI(t *testing.T) {
	remote := &fakeRemote{}
	srv, repo := initServer(t, remote)

	now := time.Now().UTC()
	testutil.CreateCourse(t, repo, 1, "Biology", "BIO1", now)
	testutil.CreateAssignment(t, repo, 10, 1, "Essay 1", now)
	testutil.CreateSubmission(t, repo, lms.Submission{
		ID: 100, UserID: 7, AssignmentID: 10, StudentName: "Alice",
		Body: null.StringFrom("a fairly long essay about mitochondria"), LastSynced: now,
	})

	t.Run("analysis before analyze is 404", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/assignments/10/analysis")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("analyze runs the pipeline and persists", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/assignments/10/analyze")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var result analysis.OverallAnalysis
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Statistics.TotalSubmissions)
		if assert.Len(t, result.Submissions, 1) {
			assert.Equal(t, "Alice", result.Submissions[0].StudentName)
			assert.Equal(t, "A fine essay. Keep going.", result.Submissions[0].Critique)
		}
		assert.Equal(t, "A fine essay. Keep going.", result.Summary)

		req, rec = newRequest(http.MethodGet, "/v1/assignments/10/analysis")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var saved lms.AnalysisResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
		assert.Equal(t, int64(10), saved.AssignmentID)

		var payload analysis.OverallAnalysis
		assert.NoError(t, json.Unmarshal([]byte(saved.Payload), &payload))
		assert.Equal(t, result.Statistics, payload.Statistics)
	})

	t.Run("analyze unknown assignment is 404", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/assignments/99/analyze")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDownloadAPI(t *testing.T) {
	remote := &fakeRemote{attachments: map[string]string{"http://a": "pdf bytes"}}
	srv, repo := initServer(t, remote)

	now := time.Now().UTC()
	testutil.CreateCourse(t, repo, 1, "Biology", "BIO1", now)
	testutil.CreateAssignment(t, repo, 10, 1, "Essay 1", now)
	testutil.CreateSubmission(t, repo, lms.Submission{
		ID: 100, UserID: 7, AssignmentID: 10, StudentName: "Alice",
		Body: null.StringFrom("essay"), LastSynced: now,
	})

	t.Run("oversized path is rejected", func(t *testing.T) {
		body := []byte(`{"path":"` + strings.Repeat("x", 501) + `"}`)
		req, rec := newRequest(http.MethodPost, "/v1/assignments/10/download", body)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	req, rec := newRequest(http.MethodPost, "/v1/assignments/10/download", []byte(`{}`))
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var res DownloadResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Path, "BIO1_Biology")

	req, rec = newRequest(http.MethodGet, "/v1/assignments/10")
	srv.ServeHTTP(rec, req)
	var a lms.Assignment
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.True(t, a.HasDownloaded)
	assert.Equal(t, res.Path, a.LocalPath.String)
}
