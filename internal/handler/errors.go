package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/rs/zerolog"
)

// ─── Service error mapping ──────────────────────────────────────────────────

type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrAccountDisabled, http.StatusForbidden, response.ErrForbidden},
	{service.ErrUsernameTaken, http.StatusConflict, response.ErrUsernameTaken},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
	{service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
	{service.ErrNotTestOwner, http.StatusForbidden, response.ErrNotTestOwner},
	{service.ErrUnknownQuestion, http.StatusBadRequest, response.ErrUnknownQuestion},
	{service.ErrQuestionNotInTest, http.StatusBadRequest, response.ErrUnknownQuestion},
	{service.ErrTestInactive, http.StatusConflict, response.ErrTestInactive},
	{service.ErrNoQuestions, http.StatusConflict, response.ErrNoQuestions},
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrSessionCompleted, http.StatusConflict, response.ErrSessionCompleted},
	{service.ErrSessionExpired, http.StatusGone, response.ErrSessionExpired},
	{service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	{service.ErrSessionNotFinished, http.StatusConflict, response.ErrSessionNotFinished},
	{service.ErrNotSessionOwner, http.StatusForbidden, response.ErrNotSessionOwner},
}

// failFromService writes the response matching a service error. Unknown
// errors are logged and reported as internal.
func failFromService(c *gin.Context, log zerolog.Logger, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString(response.ContextKeyRequestID)).
		Msg("Unhandled service error")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// ─── Param helpers ──────────────────────────────────────────────────────────

// parseIDParam reads a positive integer path parameter. On failure it writes
// the error response and returns false.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
