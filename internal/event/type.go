package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/nefziamine/skill-evaluator/internal/model"
)

type EventType string

const (
	EventTypeSessionStarted   EventType = "session.started"
	EventTypeSessionCompleted EventType = "session.completed"
)

// BaseEvent carries the envelope fields shared by every event.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBase(t EventType) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: t,
		Timestamp: time.Now().UTC(),
	}
}

// SessionStartedEvent is published when a candidate opens a new attempt.
type SessionStartedEvent struct {
	BaseEvent
	SessionID   int64     `json:"session_id"`
	TestID      int64     `json:"test_id"`
	CandidateID int64     `json:"candidate_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewSessionStartedEvent(s *model.TestSession) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseEvent:   newBase(EventTypeSessionStarted),
		SessionID:   s.ID,
		TestID:      s.TestID,
		CandidateID: s.CandidateID,
		ExpiresAt:   s.ExpiresAt,
	}
}

// SessionCompletedEvent is published once per session when it is finalized.
type SessionCompletedEvent struct {
	BaseEvent
	SessionID      int64               `json:"session_id"`
	TestID         int64               `json:"test_id"`
	CandidateID    int64               `json:"candidate_id"`
	Score          int                 `json:"score"`
	TotalPoints    int                 `json:"total_points"`
	Status         model.SessionStatus `json:"status"`
	SkillBreakdown map[string]int      `json:"skill_breakdown"`
}

func NewSessionCompletedEvent(s *model.TestSession) *SessionCompletedEvent {
	score := 0
	if s.Score != nil {
		score = *s.Score
	}
	return &SessionCompletedEvent{
		BaseEvent:      newBase(EventTypeSessionCompleted),
		SessionID:      s.ID,
		TestID:         s.TestID,
		CandidateID:    s.CandidateID,
		Score:          score,
		TotalPoints:    s.TotalPoints,
		Status:         s.Status,
		SkillBreakdown: s.SkillBreakdown,
	}
}
