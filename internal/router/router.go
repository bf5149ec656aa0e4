package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/handler"
	"github.com/nefziamine/skill-evaluator/internal/middleware"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Candidate *handler.CandidateHandler
	Question  *handler.QuestionHandler
	Test      *handler.TestHandler
	AdminUser *handler.AdminUserHandler
	Setting   *handler.SettingHandler
	System    *handler.SystemHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter cleanup.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(requestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", middleware.NoStore(), handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(60))
	{
		publicAPI.GET("/settings", handlers.Setting.GetPublicSettings)
	}

	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		authed := auth.Group("")
		authed.Use(middleware.RequireJWT(authService), middleware.CheckRevoked(authService, log))
		{
			authed.POST("/logout", handlers.Auth.Logout)
			authed.GET("/me", handlers.Auth.Me)
		}
	}

	// ─── 2. Candidate Group ────────────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.NoStore(),
		middleware.RequireJWT(authService),
		middleware.CheckRevoked(authService, log),
		middleware.RequireRole(model.RoleCandidate),
	)
	{
		candidateAPI.GET("/tests", handlers.Candidate.ListTests)
		candidateAPI.POST("/tests/:test_id/start", handlers.Candidate.StartTest)
		candidateAPI.POST("/tests/:test_id/submit", handlers.Candidate.SubmitTest)
		candidateAPI.GET("/sessions", handlers.Candidate.ListSessions)
		candidateAPI.GET("/sessions/:session_id/result", handlers.Candidate.GetResult)
		candidateAPI.GET("/sessions/:session_id/rank", handlers.Candidate.GetRank)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService, model.RoleCandidate),
		middleware.CheckRevoked(authService, log),
	)
	{
		ws.GET("/candidate/tests/:test_id/stream", handlers.WS.TestStream)
	}

	// ─── 4. Recruiter Group ────────────────────────────────────────────
	recruiterAPI := router.Group("/api/v1/recruiter")
	recruiterAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckRevoked(authService, log),
		middleware.RequireRole(model.RoleRecruiter, model.RoleAdmin),
	)
	{
		recruiterAPI.POST("/questions", handlers.Question.CreateQuestion)
		recruiterAPI.GET("/questions", handlers.Question.ListQuestions)
		recruiterAPI.GET("/questions/:question_id", handlers.Question.GetQuestion)
		recruiterAPI.DELETE("/questions/:question_id", handlers.Question.DeleteQuestion)

		recruiterAPI.POST("/tests", handlers.Test.CreateTest)
		recruiterAPI.GET("/tests", handlers.Test.ListTests)
		recruiterAPI.GET("/tests/:test_id", handlers.Test.GetTest)
		recruiterAPI.PATCH("/tests/:test_id/active", handlers.Test.SetActive)
		recruiterAPI.GET("/tests/:test_id/sessions", handlers.Test.ListAttempts)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.NoStore(),
		middleware.RequireJWT(authService),
		middleware.CheckRevoked(authService, log),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/users", handlers.AdminUser.ListUsers)
		adminAPI.POST("/users", handlers.AdminUser.CreateUser)

		adminAPI.GET("/settings", handlers.Setting.GetAllSettings)
		adminAPI.PUT("/settings", handlers.Setting.UpdateSettings)

		adminAPI.GET("/system/status", handlers.System.Status)
	}

	return router
}

// requestLogger writes one structured line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	l := log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := l.Info()
		if status >= 500 {
			evt = l.Error()
		} else if status >= 400 {
			evt = l.Warn()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Msg("request")
	}
}
