package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/rs/zerolog"
)

// CheckRevoked rejects tokens whose id was logged out. Must run after a JWT middleware.
// Redis outages fail open.
func CheckRevoked(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "revocation").Logger()
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		revoked, err := authService.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", claims.UserID).Msg("Revocation check failed")
			c.Next()
			return
		}
		if revoked {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
			return
		}

		c.Next()
	}
}
