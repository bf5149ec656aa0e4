package model

import "time"

// Test is an assessment composed of bank questions with a time limit.
type Test struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalPoints     int       `json:"total_points"`
	QuestionCount   int       `json:"question_count"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateTestRequest is the payload for composing a test from bank questions.
// TotalPoints defaults to the sum of the question points.
type CreateTestRequest struct {
	Title           string  `json:"title" binding:"required,notblank,max=255"`
	Description     string  `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalPoints     int     `json:"total_points" binding:"omitempty,min=1"`
	QuestionIDs     []int64 `json:"question_ids" binding:"required,min=1,dive,min=1"`
	IsActive        *bool   `json:"is_active"`
}

// SetTestActiveRequest toggles whether candidates can start a test.
type SetTestActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}
