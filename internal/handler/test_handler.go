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

// TestHandler handles test composition and results for recruiters.
type TestHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, sessionService *service.SessionService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		testService:    testService,
		sessionService: sessionService,
		log:            log.With().Str("component", "test_handler").Logger(),
	}
}

// CreateTest godoc
// POST /api/v1/recruiter/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	claims := middleware.GetClaims(c)

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, test)
}

// ListTests godoc
// GET /api/v1/recruiter/tests
// Recruiters see their own tests; admins see every test.
func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.testService.List(c.Request.Context(), middleware.GetClaims(c))
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, tests)
}

// GetTest godoc
// GET /api/v1/recruiter/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	test, err := h.testService.Get(c.Request.Context(), id, middleware.GetClaims(c))
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// SetActive godoc
// PATCH /api/v1/recruiter/tests/:test_id/active
func (h *TestHandler) SetActive(c *gin.Context) {
	id, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.SetTestActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.SetActive(c.Request.Context(), id, *req.IsActive, middleware.GetClaims(c))
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// ListAttempts godoc
// GET /api/v1/recruiter/tests/:test_id/sessions?page=&per_page=
// Paginated attempts at the test, best score first.
func (h *TestHandler) ListAttempts(c *gin.Context) {
	id, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}
	page, perPage := pageParams(c)

	attempts, total, err := h.sessionService.ListAttempts(c.Request.Context(), id, middleware.GetClaims(c), page, perPage)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, attempts, response.NewPagination(page, perPage, int(total)))
}
