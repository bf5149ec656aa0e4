package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/middleware"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/nefziamine/skill-evaluator/internal/validator"
	"github.com/rs/zerolog"
)

// QuestionHandler handles question bank endpoints for recruiters.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// CreateQuestion godoc
// POST /api/v1/recruiter/questions
// MCQ correct answers are given as the option letter (A, B, ...).
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	claims := middleware.GetClaims(c)

	q, err := h.questionService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOptions):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"options": err.Error()})
		case errors.Is(err, service.ErrInvalidAnswer):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"correct_answer": err.Error()})
		default:
			failFromService(c, h.log, err)
		}
		return
	}

	response.Success(c, http.StatusCreated, q)
}

// ListQuestions godoc
// GET /api/v1/recruiter/questions?skill=&difficulty=&type=
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var filter model.QuestionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), filter)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// GetQuestion godoc
// GET /api/v1/recruiter/questions/:question_id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	q, err := h.questionService.Get(c.Request.Context(), id)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// DeleteQuestion godoc
// DELETE /api/v1/recruiter/questions/:question_id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
