package handler

import (
	"errors"
	"net/http"

	"github.com/elivate/elivate-backend/internal/examsession"
	"github.com/elivate/elivate-backend/internal/response"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/elivate/elivate-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// classify maps a service error to its HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, rules.ErrUnknownProgram):
		return http.StatusNotFound, response.ErrUnknownProgram
	case errors.Is(err, examsession.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, examsession.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, examsession.ErrNotInProgress):
		return http.StatusConflict, response.ErrNotInProgress
	case errors.Is(err, examsession.ErrTimeUp):
		return http.StatusConflict, response.ErrTimeUp
	case errors.Is(err, examsession.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, examsession.ErrInvalidOption):
		return http.StatusUnprocessableEntity, response.ErrInvalidOption
	case errors.Is(err, examsession.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrIndexOutOfRange
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the envelope for err. Unexpected errors are attached to
// the context so the request logger records them.
func failWith(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
