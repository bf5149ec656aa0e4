package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/middleware"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/nefziamine/skill-evaluator/internal/validator"
	"github.com/rs/zerolog"
)

// CandidateHandler serves the candidate-facing test endpoints.
type CandidateHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(testService *service.TestService, sessionService *service.SessionService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		testService:    testService,
		sessionService: sessionService,
		log:            log.With().Str("component", "candidate_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/candidate/tests
// Returns the tests that are open for attempts.
func (h *CandidateHandler) ListTests(c *gin.Context) {
	tests, err := h.testService.ListActive(c.Request.Context())
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, tests)
}

// StartTest godoc
// POST /api/v1/candidate/tests/:test_id/start
// Opens an attempt, or resumes the running one with its remaining time and autosaved answers.
func (h *CandidateHandler) StartTest(c *gin.Context) {
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.sessionService.Start(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// SubmitTest godoc
// POST /api/v1/candidate/tests/:test_id/submit
// Grades the answers and closes the attempt. auto_submit marks a timer-driven submission.
func (h *CandidateHandler) SubmitTest(c *gin.Context) {
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	claims := middleware.GetClaims(c)

	result, err := h.sessionService.Submit(c.Request.Context(), testID, claims.UserID, &req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ListSessions godoc
// GET /api/v1/candidate/sessions
func (h *CandidateHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessions, err := h.sessionService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// GetResult godoc
// GET /api/v1/candidate/sessions/:session_id/result
func (h *CandidateHandler) GetResult(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	result, err := h.sessionService.Result(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetRank godoc
// GET /api/v1/candidate/sessions/:session_id/rank
// Positions the attempt among every completed attempt of the same test.
func (h *CandidateHandler) GetRank(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	rank, err := h.sessionService.Rank(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, rank)
}
