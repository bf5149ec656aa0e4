package model

import "time"

// SessionStatus enumerates test session states.
type SessionStatus string

const (
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted     SessionStatus = "SUBMITTED"
	SessionStatusAutoSubmitted SessionStatus = "AUTO_SUBMITTED"
	SessionStatusExpired       SessionStatus = "EXPIRED"
)

// TestSession is one candidate's attempt at one test.
type TestSession struct {
	ID             int64            `json:"id"`
	TestID         int64            `json:"test_id"`
	CandidateID    int64            `json:"candidate_id"`
	StartedAt      time.Time        `json:"started_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	IsCompleted    bool             `json:"is_completed"`
	Score          *int             `json:"score,omitempty"`
	TotalPoints    int              `json:"total_points"`
	Answers        map[int64]string `json:"answers,omitempty"`
	SkillBreakdown map[string]int   `json:"skill_breakdown,omitempty"`
	Status         SessionStatus    `json:"status"`
}

// RemainingSeconds is the whole seconds left before ExpiresAt, never negative.
func (s *TestSession) RemainingSeconds(now time.Time) int {
	left := int(s.ExpiresAt.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// StartSessionResponse is returned when a candidate starts or resumes a test.
type StartSessionResponse struct {
	SessionID            int64               `json:"session_id"`
	Test                 Test                `json:"test"`
	Questions            []CandidateQuestion `json:"questions"`
	TimeRemainingSeconds int                 `json:"time_remaining_seconds"`
	SavedAnswers         map[int64]string    `json:"saved_answers,omitempty"`
}

// SubmitTestRequest carries the candidate's answers keyed by question id.
type SubmitTestRequest struct {
	Answers    map[int64]string `json:"answers"`
	AutoSubmit bool             `json:"auto_submit"`
}

// SubmitTestResult is the outcome of a submission.
type SubmitTestResult struct {
	SessionID   int64         `json:"session_id"`
	Score       int           `json:"score"`
	TotalPoints int           `json:"total_points"`
	Percentage  float64       `json:"percentage"`
	Passed      bool          `json:"passed"`
	Status      SessionStatus `json:"status"`
	Message     string        `json:"message"`
}

// SessionResult is the result view of a completed session.
type SessionResult struct {
	SessionID      int64          `json:"session_id"`
	TestTitle      string         `json:"test_title"`
	Score          int            `json:"score"`
	TotalPoints    int            `json:"total_points"`
	Percentage     float64        `json:"percentage"`
	Passed         bool           `json:"passed"`
	SkillBreakdown map[string]int `json:"skill_breakdown"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	Status         SessionStatus  `json:"status"`
}

// SessionRank positions a completed session among all completed sessions of its test.
type SessionRank struct {
	Rank            int     `json:"rank"`
	TotalCandidates int     `json:"total_candidates"`
	Percentile      float64 `json:"percentile"`
}

// CandidateAttempt is a session row joined with the candidate, for recruiters.
type CandidateAttempt struct {
	SessionID   int64         `json:"session_id"`
	CandidateID int64         `json:"candidate_id"`
	Username    string        `json:"username"`
	FullName    string        `json:"full_name"`
	Score       *int          `json:"score"`
	TotalPoints int           `json:"total_points"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at"`
}

// AutosaveEntry is one answer queued for persistence while a session runs.
type AutosaveEntry struct {
	SessionID  int64  `json:"session_id"`
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}
