package service

import (
	"math"
	"strings"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
)

// Grade is the outcome of scoring one set of answers.
type Grade struct {
	Score          int
	SkillBreakdown map[string]int
}

// IsCorrect compares an answer to the key, ignoring surrounding whitespace and case.
func IsCorrect(q model.Question, answer string) bool {
	given := strings.TrimSpace(answer)
	if given == "" {
		return false
	}
	switch q.Type {
	case model.QuestionTypeMCQ, model.QuestionTypeTrueFalse, model.QuestionTypeShortAnswer:
		return strings.EqualFold(strings.TrimSpace(q.CorrectAnswer), given)
	}
	return false
}

// GradeAnswers scores answers against the questions of a test. Every skill of
// the test appears in the breakdown, with zero when nothing was earned.
// Answers to questions outside the test are ignored.
func GradeAnswers(questions []model.Question, answers map[int64]string) Grade {
	g := Grade{SkillBreakdown: make(map[string]int, len(questions))}
	for _, q := range questions {
		if _, ok := g.SkillBreakdown[q.Skill]; !ok {
			g.SkillBreakdown[q.Skill] = 0
		}
		answer, ok := answers[q.ID]
		if !ok || !IsCorrect(q, answer) {
			continue
		}
		g.SkillBreakdown[q.Skill] += q.Points
		g.Score += q.Points
	}
	return g
}

// Percentage returns score/total as a percentage rounded to two decimals.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(score) * 100 / float64(total))
}

// RankOf positions sessionID within scores, which must be ordered best first.
// The percentile is the share of candidates ranked below.
func RankOf(scores []repository.ScoredSession, sessionID int64) (model.SessionRank, bool) {
	for i, s := range scores {
		if s.ID != sessionID {
			continue
		}
		n := len(scores)
		rank := i + 1
		return model.SessionRank{
			Rank:            rank,
			TotalCandidates: n,
			Percentile:      round2(float64(n-rank) / float64(n) * 100),
		}, true
	}
	return model.SessionRank{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
