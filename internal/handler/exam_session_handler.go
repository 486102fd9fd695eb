package handler

import (
	"net/http"

	"github.com/elivate/elivate-backend/internal/middleware"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/response"
	"github.com/elivate/elivate-backend/internal/service"
	"github.com/elivate/elivate-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExamSessionHandler handles the learner's mock test lifecycle.
type ExamSessionHandler struct {
	sessionService *service.ExamSessionService
}

// NewExamSessionHandler creates a new ExamSessionHandler.
func NewExamSessionHandler(sessionService *service.ExamSessionService) *ExamSessionHandler {
	return &ExamSessionHandler{sessionService: sessionService}
}

// Create godoc
// POST /api/v1/exam-sessions
// Draws a fresh question set and returns the instructions screen.
// Any previous session of the learner is discarded.
func (h *ExamSessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ins, err := h.sessionService.Create(c.Request.Context(), claims.LearnerID(), req.Program)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"instructions": ins})
}

// GetCurrent godoc
// GET /api/v1/exam-sessions/current
// Returns the live session. Covers page reloads: answers, review marks and
// the remaining time all come back.
func (h *ExamSessionHandler) GetCurrent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	st, err := h.sessionService.State(c.Request.Context(), claims.LearnerID())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// Start godoc
// POST /api/v1/exam-sessions/current/start
func (h *ExamSessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	st, err := h.sessionService.Start(c.Request.Context(), claims.LearnerID())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": st})
}

// SelectAnswer godoc
// PUT /api/v1/exam-sessions/current/answers/:question_id
func (h *ExamSessionHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SelectAnswer(c.Request.Context(), claims.LearnerID(), questionID, *req.Option); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "option": *req.Option})
}

// ToggleReview godoc
// POST /api/v1/exam-sessions/current/review/:question_id
func (h *ExamSessionHandler) ToggleReview(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	marked, err := h.sessionService.ToggleReview(c.Request.Context(), claims.LearnerID(), questionID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "marked": marked})
}

// Navigate godoc
// POST /api/v1/exam-sessions/current/navigate
func (h *ExamSessionHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Navigate(c.Request.Context(), claims.LearnerID(), *req.Index); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"current_index": *req.Index})
}

// GetSummary godoc
// GET /api/v1/exam-sessions/current/summary
// Counts shown on the submit confirmation dialog.
func (h *ExamSessionHandler) GetSummary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sum, err := h.sessionService.Summary(c.Request.Context(), claims.LearnerID())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": sum})
}

// Submit godoc
// POST /api/v1/exam-sessions/current/submit
// Requires {"confirm": true}.
func (h *ExamSessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !req.Confirm {
		response.Fail(c, http.StatusBadRequest, response.ErrConfirmRequired)
		return
	}

	res, err := h.sessionService.Submit(c.Request.Context(), claims.LearnerID())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": res})
}

// GetResults godoc
// GET /api/v1/exam-sessions/current/results
func (h *ExamSessionHandler) GetResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	res, err := h.sessionService.Results(c.Request.Context(), claims.LearnerID())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": res})
}

// Abandon godoc
// DELETE /api/v1/exam-sessions/current
func (h *ExamSessionHandler) Abandon(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), claims.LearnerID()); err != nil {
		failWith(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
