package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/testsession"
)

const helpText = `Commands:
  a <answer>   answer the current question (letter or number for choices, true/false, or text)
  n / p        next / previous question
  g <number>   go to question number
  l            list questions with their answers
  s            submit your answers
  q            leave without submitting (the timer keeps running on the server)
  h            show this help`

func renderQuestion(w io.Writer, s *testsession.Session) {
	q, ok := s.Current()
	if !ok {
		return
	}
	total := len(s.Questions())
	remaining := s.Remaining()

	fmt.Fprintf(w, "\nQuestion %d/%d   time left %s", s.Index()+1, total, testsession.FormatRemaining(remaining))
	if testsession.LowOnTime(remaining) {
		fmt.Fprint(w, "  (hurry up!)")
	}
	fmt.Fprintln(w)

	if q.Skill != "" {
		fmt.Fprintf(w, "[%s, %d pt]\n", q.Skill, q.Points)
	}
	fmt.Fprintln(w, q.Text)

	switch q.Type {
	case model.QuestionTypeMCQ:
		for i, opt := range q.OptionList() {
			fmt.Fprintf(w, "  %s) %s\n", model.OptionLetter(i), opt)
		}
	case model.QuestionTypeTrueFalse:
		fmt.Fprintln(w, "  true / false")
	default:
		fmt.Fprintln(w, "  (type your answer)")
	}

	if answer, ok := s.Answer(q.ID); ok {
		fmt.Fprintf(w, "Your answer: %s\n", answer)
	}
}

func renderOverview(w io.Writer, s *testsession.Session) {
	answers := s.Answers()
	for i, q := range s.Questions() {
		mark := " "
		if _, ok := answers[q.ID]; ok {
			mark = "x"
		}
		cursor := " "
		if i == s.Index() {
			cursor = ">"
		}
		fmt.Fprintf(w, "%s [%s] %2d. %s\n", cursor, mark, i+1, truncate(q.Text, 60))
	}
	fmt.Fprintf(w, "%d of %d answered\n", len(answers), len(s.Questions()))
}

func renderSubmitResult(w io.Writer, r *model.SubmitTestResult) {
	fmt.Fprintln(w)
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	fmt.Fprintf(w, "Score: %d/%d (%.2f%%)\n", r.Score, r.TotalPoints, r.Percentage)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	fmt.Fprintf(w, "Result: %s\n", passLabel(r.Passed))
	fmt.Fprintf(w, "Session: %d (see details with: take-test result %d)\n", r.SessionID, r.SessionID)
}

func renderTests(w io.Writer, tests []model.Test) {
	if len(tests) == 0 {
		fmt.Fprintln(w, "No tests are open right now.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tDURATION\tPOINTS")
	for _, t := range tests {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d min\t%d\n", t.ID, t.Title, t.QuestionCount, t.DurationMinutes, t.TotalPoints)
	}
	tw.Flush()
}

func renderSessions(w io.Writer, sessions []model.TestSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "You have not taken any test yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTEST\tSTATUS\tSCORE\tSTARTED")
	for _, s := range sessions {
		score := "-"
		if s.Score != nil {
			score = fmt.Sprintf("%d/%d", *s.Score, s.TotalPoints)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", s.ID, s.TestID, s.Status, score, s.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func renderSessionResult(w io.Writer, r *model.SessionResult, rank *model.SessionRank) {
	fmt.Fprintf(w, "%s\n", r.TestTitle)
	fmt.Fprintf(w, "Score: %d/%d (%.2f%%)  %s\n", r.Score, r.TotalPoints, r.Percentage, passLabel(r.Passed))
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.SubmittedAt != nil {
		fmt.Fprintf(w, "Submitted: %s\n", r.SubmittedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if rank != nil {
		fmt.Fprintf(w, "Rank: %d of %d (percentile %.2f)\n", rank.Rank, rank.TotalCandidates, rank.Percentile)
	}

	if len(r.SkillBreakdown) == 0 {
		return
	}
	skills := make([]string, 0, len(r.SkillBreakdown))
	for skill := range r.SkillBreakdown {
		skills = append(skills, skill)
	}
	slices.Sort(skills)

	fmt.Fprintln(w, "Points by skill:")
	for _, skill := range skills {
		fmt.Fprintf(w, "  %-20s %d\n", skill, r.SkillBreakdown[skill])
	}
}

func passLabel(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "NOT PASSED"
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
