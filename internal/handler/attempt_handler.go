package handler

import (
	"net/http"

	"github.com/elivate/elivate-backend/internal/middleware"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/response"
	"github.com/elivate/elivate-backend/internal/service"
	"github.com/elivate/elivate-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

const defaultAttemptsPerPage = 20

// AttemptHandler serves the learner's attempt history.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// ListAttempts godoc
// GET /api/v1/attempts?page=1&per_page=20
// Newest first, with per-program stats.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.AttemptListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = defaultAttemptsPerPage
	}

	history, err := h.attemptService.History(c.Request.Context(), claims.LearnerID(), q.Page, q.PerPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, history, response.NewPagination(q.Page, q.PerPage, history.Total))
}
