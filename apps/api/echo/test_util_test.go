package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tmatias/aigrader/core"
	"github.com/tmatias/aigrader/core/analysis"
	"github.com/tmatias/aigrader/core/lms"
	inmemdb "github.com/tmatias/aigrader/storage/database/inmem"
	testutil "github.com/tmatias/aigrader/tests"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

type fakeRemote struct {
	courses     []lms.RemoteCourse
	assignments map[int64][]lms.RemoteAssignment
	submissions map[int64][]lms.RemoteSubmission
	users       map[int64]lms.RemoteUser
	attachments map[string]string
}

var _ lms.RemoteService = (*fakeRemote)(nil)

func (f *fakeRemote) CurrentCourses(context.Context) ([]lms.RemoteCourse, error) {
	return f.courses, nil
}

func (f *fakeRemote) CourseAssignments(_ context.Context, courseID int64) ([]lms.RemoteAssignment, error) {
	return f.assignments[courseID], nil
}

func (f *fakeRemote) Assignment(_ context.Context, courseID, assignmentID int64) (lms.RemoteAssignment, error) {
	for _, ra := range f.assignments[courseID] {
		if ra.ID == assignmentID {
			return ra, nil
		}
	}
	return lms.RemoteAssignment{}, fmt.Errorf("Canvas API returned status 404 for assignment %d", assignmentID)
}

func (f *fakeRemote) Submissions(_ context.Context, _, assignmentID int64) ([]lms.RemoteSubmission, error) {
	return f.submissions[assignmentID], nil
}

func (f *fakeRemote) Users(_ context.Context, _ int64, userIDs []int64) (map[int64]lms.RemoteUser, error) {
	users := make(map[int64]lms.RemoteUser, len(userIDs))
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			users[id] = u
		}
	}
	return users, nil
}

func (f *fakeRemote) AssignmentSubmissionStats(context.Context, int64, int64) (int, int, error) {
	return 0, 0, nil
}

func (f *fakeRemote) DownloadAttachment(_ context.Context, url string) (string, error) {
	return f.attachments[url], nil
}

type fakeFiles struct{}

func (fakeFiles) WriteText(string, string) error { return nil }
func (fakeFiles) EnsureDir(string) error         { return nil }

type fakeCompleter struct {
	text string
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) {
	return f.text, nil
}

func initServer(t *testing.T, remote *fakeRemote) (Server, lms.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewRepository(db)
	logger := testutil.NewLogger(t)

	conf := &core.Config{TestMode: true, SyncStaleAfter: time.Hour, DownloadDir: t.TempDir()}

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		LMSSvc:         lms.NewService(repo, remote, fakeFiles{}, logger, conf),
		AnalysisSvc:    analysis.NewService(fakeCompleter{text: "A fine essay. Keep going."}, logger),
		Validate:       validate,
		Translator:     translator,
	})
	return srv, repo
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData != nil {
		testutil.AssertJSONEqual(t, tt.wantData, rec.Body.Bytes())
	}
}
