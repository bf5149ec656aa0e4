package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour}, nil, nil)
}

func tokenFor(t *testing.T, auth *service.AuthService, role model.Role) string {
	t.Helper()
	token, _, err := auth.GenerateToken(&model.User{ID: 5, Username: "u", Role: role})
	require.NoError(t, err)
	return token
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID, "role": claims.Role})
	})
	r.GET("/p", handlers...)
	return r
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestRequireJWT(t *testing.T) {
	auth := newAuth()
	r := newRouter(RequireJWT(auth))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"missing header", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"valid token", "Bearer " + tokenFor(t, auth, model.RoleCandidate), http.StatusOK, ""},
		{"lower case scheme", "bearer " + tokenFor(t, auth, model.RoleRecruiter), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	auth := newAuth()
	r := newRouter(RequireJWT(auth), RequireRole(model.RoleRecruiter, model.RoleAdmin))

	for role, want := range map[model.Role]int{
		model.RoleCandidate: http.StatusForbidden,
		model.RoleRecruiter: http.StatusOK,
		model.RoleAdmin:     http.StatusOK,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, auth, role))
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, string(role))
	}
}

func TestRequireRole_WithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/p", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireWSAuth(t *testing.T) {
	auth := newAuth()
	r := newRouter(RequireWSAuth(auth, model.RoleCandidate))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p?token="+tokenFor(t, auth, model.RoleAdmin), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p?token="+tokenFor(t, auth, model.RoleCandidate), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
