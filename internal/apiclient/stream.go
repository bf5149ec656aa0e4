package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	ws "github.com/nefziamine/skill-evaluator/internal/websocket"
)

const streamWriteWait = 10 * time.Second

// AutosaveStream is an open WebSocket that saves answers while a test runs.
// It satisfies testsession.Autosaver. Calls are serialized.
type AutosaveStream struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID int64
	remaining int
}

// OpenAutosaveStream dials the stream of testID. The server answers with the
// current remaining time, which is available through Remaining.
func (c *Client) OpenAutosaveStream(ctx context.Context, testID int64) (*AutosaveStream, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("/ws/v1/candidate/tests/%d/stream", testID)
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	s := &AutosaveStream{conn: conn}
	first, err := s.read(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if first.Event != ws.EventSync || first.TimeRemainingSeconds == nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected first stream event %q", first.Event)
	}
	s.sessionID = first.SessionID
	s.remaining = *first.TimeRemainingSeconds

	c.log.Debug().Int64("test_id", testID).Int64("session_id", s.sessionID).Msg("Autosave stream open")
	return s, nil
}

func (s *AutosaveStream) SessionID() int64 { return s.sessionID }

// Remaining is the server-side remaining time from the last sync.
func (s *AutosaveStream) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Autosave stores one answer and waits for the acknowledgement.
func (s *AutosaveStream) Autosave(ctx context.Context, questionID int64, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.roundTrip(ctx, ws.Request{Action: ws.ActionAutosave, QuestionID: questionID, Answer: answer})
	if err != nil {
		return err
	}
	if reply.Event != ws.EventSaved || reply.QuestionID != questionID {
		return fmt.Errorf("unexpected autosave reply %q", reply.Event)
	}
	return nil
}

// Sync asks the server for the authoritative remaining time.
func (s *AutosaveStream) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.roundTrip(ctx, ws.Request{Action: ws.ActionSync})
	if err != nil {
		return 0, err
	}
	if reply.Event != ws.EventSync || reply.TimeRemainingSeconds == nil {
		return 0, fmt.Errorf("unexpected sync reply %q", reply.Event)
	}
	s.remaining = *reply.TimeRemainingSeconds
	return s.remaining, nil
}

func (s *AutosaveStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// roundTrip must be called with s.mu held.
func (s *AutosaveStream) roundTrip(ctx context.Context, req ws.Request) (*ws.Response, error) {
	if err := s.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return nil, err
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("stream write: %w", err)
	}

	reply, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if reply.Event == ws.EventError {
		return nil, &StreamError{Message: reply.Error}
	}
	return reply, nil
}

func (s *AutosaveStream) read(ctx context.Context) (*ws.Response, error) {
	if err := s.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, err
	}
	var reply ws.Response
	if err := s.conn.ReadJSON(&reply); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("stream closed: %w", err)
		}
		return nil, fmt.Errorf("stream read: %w", err)
	}
	return &reply, nil
}

// StreamError is an error event sent by the server on the stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return "stream: " + e.Message }

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(streamWriteWait)
}
