package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSync     Action = "sync"
	ActionPing     Action = "ping"
)

// Request is every client message. QuestionID and Answer are only read for autosave.
type Request struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventSaved Event = "saved"
	EventSync  Event = "sync"
	EventPong  Event = "pong"
)

// Response is every server message.
type Response struct {
	Event                Event  `json:"event"`
	SessionID            int64  `json:"session_id,omitempty"`
	QuestionID           int64  `json:"question_id,omitempty"`
	TimeRemainingSeconds *int   `json:"time_remaining_seconds,omitempty"`
	Error                string `json:"error,omitempty"`
}

// SyncResponse reports the authoritative remaining time of a session.
func SyncResponse(sessionID int64, remaining int) Response {
	return Response{Event: EventSync, SessionID: sessionID, TimeRemainingSeconds: &remaining}
}

// SavedResponse acknowledges one autosaved answer.
func SavedResponse(questionID int64) Response {
	return Response{Event: EventSaved, QuestionID: questionID}
}
