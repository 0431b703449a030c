package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/light-quiz/quiz-service/internal/services"
	"github.com/light-quiz/quiz-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *utils.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// GetQuizMetadata returns the pre-start view of a quiz
// @Summary Get quiz metadata
// @Description Returns quiz timing and scoring metadata without questions
// @Tags quizzes
// @Produce json
// @Param quiz_id path string true "Quiz ID"
// @Success 200 {object} services.QuizMetadataResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id} [get]
func (h *AttemptHandler) GetQuizMetadata(c *gin.Context) {
	quizID := parseUUIDParam(c, "quiz_id")
	if quizID == uuid.Nil {
		return
	}

	metadata, err := h.attemptService.GetQuizMetadata(c.Request.Context(), quizID, studentID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, metadata)
}

// StartAttempt begins the student's timed attempt
// @Summary Start attempt
// @Description Starts the student's single timed attempt and returns the question list
// @Tags attempts
// @Produce json
// @Param quiz_id path string true "Quiz ID"
// @Success 201 {object} services.StartAttemptResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/attempt [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := parseUUIDParam(c, "quiz_id")
	if quizID == uuid.Nil {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", quizID)

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, studentID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SaveProgress upserts the student's in-flight answers
// @Summary Save progress
// @Description Merges the submitted answers into the stored set without ending the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param progress body services.SaveProgressRequest true "Answers to save"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /attempts/progress [post]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	var req services.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SaveProgress(c.Request.Context(), studentID(c), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Progress saved"})
}

// GetProgress returns the stored answers for the student's attempt
// @Summary Get progress
// @Description Returns previously saved answers and attempt timing
// @Tags attempts
// @Produce json
// @Param quiz_id path string true "Quiz ID"
// @Success 200 {object} services.ProgressResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/progress [get]
func (h *AttemptHandler) GetProgress(c *gin.Context) {
	quizID := parseUUIDParam(c, "quiz_id")
	if quizID == uuid.Nil {
		return
	}

	progress, err := h.attemptService.GetProgress(c.Request.Context(), quizID, studentID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SubmitQuiz finalizes the student's attempt
// @Summary Submit quiz
// @Description Merges final answers, ends the attempt, and queues grading
// @Tags attempts
// @Accept json
// @Produce json
// @Param submission body services.SubmitQuizRequest true "Final answers"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/submit [post]
func (h *AttemptHandler) SubmitQuiz(c *gin.Context) {
	var req services.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting quiz", "quiz_id", req.QuizID)

	if err := h.attemptService.Submit(c.Request.Context(), studentID(c), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz submitted"})
}

// GetResult returns the graded result for the student's attempt
// @Summary Get result
// @Description Returns the graded result once the grading pipeline has finished
// @Tags attempts
// @Produce json
// @Param quiz_id path string true "Quiz ID"
// @Success 200 {object} services.ResultResponse
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	quizID := parseUUIDParam(c, "quiz_id")
	if quizID == uuid.Nil {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), quizID, studentID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrAttemptNotOwned):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
		})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
		})
	case services.IsPrecondition(err):
		c.JSON(http.StatusPreconditionFailed, ErrorResponse{
			Message: err.Error(),
		})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
		})
	default:
		h.LogError(c, err, "Internal server error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
