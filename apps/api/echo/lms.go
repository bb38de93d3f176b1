package echoapi

import (
	"encoding/json"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/analysis"
	"github.com/tmatias/aigrader/core/lms"
)

type lmsApi struct {
	svc         *lms.Service
	analysisSvc *analysis.Service
	validate    *validator.Validate
	translator  ut.Translator
}

func registerLMSAPI(
	g *echo.Group,
	svc *lms.Service,
	analysisSvc *analysis.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := lmsApi{
		svc:         svc,
		analysisSvc: analysisSvc,
		validate:    validate,
		translator:  translator,
	}

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.PATCH("/:id", api.updateCourse)
	cg.GET("/:id/assignments", api.queryCourseAssignments)

	ag := g.Group("/assignments")
	ag.GET("", api.queryAssignments)
	ag.GET("/lookup", api.lookupAssignment)
	ag.GET("/:id", api.retrieveAssignment)
	ag.GET("/:id/submissions", api.querySubmissions)
	ag.POST("/:id/download", api.downloadSubmissions)
	ag.POST("/:id/analyze", api.analyzeSubmissions)
	ag.GET("/:id/analysis", api.retrieveAnalysis)
}

// Handlers

func (api *lmsApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.Courses(
		requestContext(ctx),
		boolQueryParam(ctx, "force_sync"),
		boolQueryParam(ctx, "include_hidden"),
	)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *lmsApi) updateCourse(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data UpdateCourseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourseRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rctx := requestContext(ctx)
	if _, err = api.svc.Course(rctx, id); err != nil {
		return err
	}
	if data.Hidden != nil {
		if err = api.svc.SetCourseHidden(rctx, id, *data.Hidden); err != nil {
			return errors.Wrap(err, "updating course visibility")
		}
	}
	if data.CustomName != nil {
		if err = api.svc.SetCourseCustomName(rctx, id, *data.CustomName); err != nil {
			return errors.Wrap(err, "updating course name")
		}
	}

	course, err := api.svc.Course(rctx, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *lmsApi) queryCourseAssignments(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.Assignments(requestContext(ctx), id, boolQueryParam(ctx, "force_sync"))
	if err != nil {
		return errors.Wrap(err, "querying course assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *lmsApi) queryAssignments(ctx echo.Context) error {
	assignments, err := api.svc.Assignments(requestContext(ctx), 0, boolQueryParam(ctx, "force_sync"))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// lookupAssignment resolves a pasted Canvas assignment URL to the local
// assignment, fetching it from Canvas and syncing its submissions on first
// sight.
func (api *lmsApi) lookupAssignment(ctx echo.Context) error {
	courseID, assignmentID, err := lms.ParseAssignmentURL(ctx.QueryParam("url"))
	if err != nil {
		return err
	}
	a, err := api.svc.LookupAssignment(requestContext(ctx), courseID, assignmentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *lmsApi) retrieveAssignment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Assignment(requestContext(ctx), id, boolQueryParam(ctx, "force_sync"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *lmsApi) querySubmissions(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(requestContext(ctx), id, boolQueryParam(ctx, "force_sync"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *lmsApi) downloadSubmissions(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data DownloadRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DownloadRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	path, err := api.svc.DownloadSubmissions(requestContext(ctx), id, data.Path)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DownloadResponse{Path: path})
}

// analyzeSubmissions runs the analysis pipeline over the assignment's local
// submissions and appends the result to the assignment's analysis history.
func (api *lmsApi) analyzeSubmissions(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	rctx := requestContext(ctx)

	a, err := api.svc.Assignment(rctx, id, false)
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(rctx, id, false)
	if err != nil {
		return errors.Wrap(err, "loading submissions")
	}

	input := make([]analysis.SubmissionAnalysis, 0, len(subs))
	for _, sub := range subs {
		input = append(input, analysis.SubmissionAnalysis{
			StudentName: sub.StudentName,
			Content:     sub.Body.String,
		})
	}

	result := api.analysisSvc.Analyze(rctx, input, a.Name)

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encoding analysis result")
	}
	if err = api.svc.SaveAnalysis(rctx, id, string(payload)); err != nil {
		return errors.Wrap(err, "saving analysis result")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *lmsApi) retrieveAnalysis(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.LatestAnalysis(requestContext(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
