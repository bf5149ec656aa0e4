package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/handler"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{GinMode: gin.TestMode, JWTSecret: "test-secret", AuthRateLimit: 5}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handlers := &Handlers{
		Auth:      &handler.AuthHandler{},
		Candidate: &handler.CandidateHandler{},
		Question:  &handler.QuestionHandler{},
		Test:      &handler.TestHandler{},
		AdminUser: &handler.AdminUserHandler{},
		Setting:   &handler.SettingHandler{},
		System:    &handler.SystemHandler{},
		WS:        &handler.WSHandler{},
	}
	return SetupRouter(ctx, service.NewAuthService(cfg, nil, nil), handlers, cfg, zerolog.Nop())
}

func TestSetupRouter_RegistersSessionRoutes(t *testing.T) {
	r := newTestRouter(t)

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/auth/register",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/logout",
		"GET /api/v1/auth/me",
		"GET /api/v1/candidate/tests",
		"POST /api/v1/candidate/tests/:test_id/start",
		"POST /api/v1/candidate/tests/:test_id/submit",
		"GET /api/v1/candidate/sessions/:session_id/result",
		"GET /api/v1/candidate/sessions/:session_id/rank",
		"GET /ws/v1/candidate/tests/:test_id/stream",
		"POST /api/v1/recruiter/tests",
		"GET /api/v1/recruiter/tests/:test_id/sessions",
		"PUT /api/v1/admin/settings",
		"GET /api/v1/public/settings",
		"GET /health",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestSetupRouter_ProtectedGroupsRequireToken(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/candidate/tests",
		"/api/v1/recruiter/tests",
		"/api/v1/admin/users",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}
