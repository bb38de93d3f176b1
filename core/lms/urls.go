package lms

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core"
)

var assignmentURLRegex = regexp.MustCompile(`courses/(\d+)/assignments/(\d+)`)

var errInvalidAssignmentURL = errors.New("invalid Canvas assignment URL format")

// ParseAssignmentURL extracts the course and assignment ids from a Canvas
// assignment URL of the form .../courses/{courseID}/assignments/{assignmentID}.
func ParseAssignmentURL(url string) (courseID, assignmentID int64, err error) {
	match := assignmentURLRegex.FindStringSubmatch(url)
	if match == nil {
		return 0, 0, core.NewValidationError(errInvalidAssignmentURL, core.FieldError{
			Field: "url", Error: errInvalidAssignmentURL.Error(),
		})
	}
	courseID, _ = strconv.ParseInt(match[1], 10, 64)
	assignmentID, _ = strconv.ParseInt(match[2], 10, 64)
	return courseID, assignmentID, nil
}
