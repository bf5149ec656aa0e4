package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nefziamine/skill-evaluator/internal/middleware"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	ws "github.com/nefziamine/skill-evaluator/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams autosave and timer sync for a running attempt.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/candidate/tests/:test_id/stream?token=
// Autosaves answers one at a time and answers sync requests with the server-side remaining time.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	// Refuse before upgrading so plain HTTP clients get a proper error body.
	sessionID, remaining, err := h.sessionService.Remaining(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int64("candidate_id", claims.UserID).
		Int64("test_id", testID).
		Int64("session_id", sessionID).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	if err := ws.WriteTyped(conn, ws.SyncResponse(sessionID, remaining)); err != nil {
		return
	}

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var reply ws.Response
		switch msg.Action {
		case ws.ActionAutosave:
			reply, err = h.handleAutosave(c.Request.Context(), testID, claims.UserID, &msg)
		case ws.ActionSync:
			var id int64
			var left int
			id, left, err = h.sessionService.Remaining(c.Request.Context(), testID, claims.UserID)
			reply = ws.SyncResponse(id, left)
		case ws.ActionPing:
			reply = ws.Response{Event: ws.EventPong}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			reply = ws.Response{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}

		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrNoActiveSession) {
				// The attempt is over; nothing more can be saved on this stream.
				ws.WriteError(conn, err.Error())
				return
			}
			if !errors.Is(err, service.ErrQuestionNotInTest) {
				wsLog.Error().Err(err).Str("action", string(msg.Action)).Msg("Stream action failed")
			}
			reply = ws.Response{Event: ws.EventError, Error: publicMessage(err)}
		}

		if err := ws.WriteTyped(conn, reply); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, testID, candidateID int64, msg *ws.Request) (ws.Response, error) {
	if msg.QuestionID <= 0 {
		return ws.Response{Event: ws.EventError, Error: "question_id is required"}, nil
	}
	if err := h.sessionService.Autosave(ctx, testID, candidateID, msg.QuestionID, msg.Answer); err != nil {
		return ws.Response{}, err
	}
	return ws.SavedResponse(msg.QuestionID), nil
}

// publicMessage hides internal error details from stream clients.
func publicMessage(err error) string {
	if errors.Is(err, service.ErrQuestionNotInTest) {
		return err.Error()
	}
	return "save failed"
}
