package echoapi

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tmatias/aigrader/core"
)

type (
	// UpdateCourseRequest carries the local-only course settings; nil fields
	// are left untouched.
	UpdateCourseRequest struct {
		Hidden     *bool   `json:"hidden"`
		CustomName *string `json:"custom_name" validate:"omitempty,max=500"`
	}

	DownloadRequest struct {
		Path string `json:"path" validate:"omitempty,max=500"`
	}

	DownloadResponse struct {
		Path string `json:"path"`
	}
)

func (r *UpdateCourseRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r *DownloadRequest) Validate(validate *validator.Validate) error {
	r.Path = core.CleanString(r.Path)
	return validate.Struct(r)
}

func requestContext(ctx echo.Context) context.Context {
	return ctx.Request().Context()
}

func idParam(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "invalid id"})
	}
	return id, nil
}

func boolQueryParam(ctx echo.Context, name string) bool {
	val, _ := strconv.ParseBool(ctx.QueryParam(name))
	return val
}
