// Package testsession drives one timed attempt at a test: it starts or resumes the
// session on the server, collects answers, counts down the remaining time and
// submits exactly once, automatically when the time runs out.
package testsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/rs/zerolog"
)

var (
	ErrSubmitInFlight    = errors.New("a submission is already in flight")
	ErrNotSubmittable    = errors.New("session cannot be submitted in its current state")
	ErrNoQuestions       = errors.New("test has no questions")
	ErrMalformedQuestion = errors.New("malformed question")
	ErrUnknownQuestion   = errors.New("question is not part of this test")
	ErrReadOnly          = errors.New("answers can no longer be changed")
	ErrAlreadyBegun      = errors.New("session already begun")
)

// API is the backend the session talks to.
type API interface {
	StartTest(ctx context.Context, testID int64) (*model.StartSessionResponse, error)
	SubmitTest(ctx context.Context, testID int64, req *model.SubmitTestRequest) (*model.SubmitTestResult, error)
}

// Autosaver receives every answer change as it happens. Failures are logged only.
type Autosaver interface {
	Autosave(ctx context.Context, questionID int64, answer string) error
}

// Option configures a Session.
type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithAutosaver(a Autosaver) Option {
	return func(s *Session) { s.autosaver = a }
}

// WithTickHandler is called after every countdown tick with the seconds left.
func WithTickHandler(fn func(remaining int)) Option {
	return func(s *Session) { s.onTick = fn }
}

// WithStateHandler is called after every state change, outside the session lock.
func WithStateHandler(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session is one candidate attempt. Methods are safe for concurrent use.
type Session struct {
	api       API
	testID    int64
	clock     Clock
	log       zerolog.Logger
	autosaver Autosaver
	onTick    func(int)
	onState   func(State)

	countdown  *Countdown
	autoCtx    context.Context
	autoCancel context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once

	mu         sync.Mutex
	state      State
	deadline   time.Time
	begun      bool
	closed     bool
	autoFailed bool
	failure    *Failure
	sessionID  int64
	test       model.Test
	questions  []model.CandidateQuestion
	answers    *AnswerMap
	nav        *Navigator
	result     *model.SubmitTestResult
}

// New prepares a session for testID. Nothing is sent until Begin.
func New(api API, testID int64, opts ...Option) *Session {
	s := &Session{
		api:     api,
		testID:  testID,
		clock:   SystemClock,
		log:     zerolog.Nop(),
		done:    make(chan struct{}),
		state:   StateLoading,
		answers: NewAnswerMap(),
		nav:     NewNavigator(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "testsession").Int64("test_id", testID).Logger()
	s.autoCtx, s.autoCancel = context.WithCancel(context.Background())
	s.countdown = NewCountdown(s.clock, s.onTick, s.autoSubmit)
	return s
}

// Begin issues the single start/resume request. On failure the session is left in
// StateError for good and the countdown never starts. When the server reports no
// time left, the automatic submission runs before Begin returns.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.begun {
		s.mu.Unlock()
		return ErrAlreadyBegun
	}
	s.begun = true
	s.mu.Unlock()

	resp, err := s.api.StartTest(ctx, s.testID)
	if err == nil {
		err = validateStart(resp)
	}

	s.mu.Lock()
	if err != nil {
		s.failure = &Failure{Err: err}
		s.apply(evStartFailed)
		s.mu.Unlock()

		s.log.Error().Err(err).Msg("Session start failed")
		s.emit(StateError)
		s.finish()
		return err
	}

	s.sessionID = resp.SessionID
	s.test = resp.Test
	s.questions = append([]model.CandidateQuestion(nil), resp.Questions...)
	s.nav = NewNavigator(len(s.questions))
	for qid, answer := range resp.SavedAnswers {
		if s.hasQuestion(qid) {
			s.answers.Set(qid, answer)
		}
	}
	s.apply(evStarted)
	remaining := resp.TimeRemainingSeconds
	s.deadline = s.clock.Now().Add(time.Duration(max(remaining, 0)) * time.Second)
	// A positive start never calls back synchronously, so it is safe under the lock.
	if remaining > 0 && !s.closed {
		if err := s.countdown.Start(remaining); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	expired := remaining <= 0 && !s.closed
	s.mu.Unlock()

	s.log.Info().
		Int64("session_id", resp.SessionID).
		Int("questions", len(resp.Questions)).
		Int("remaining", remaining).
		Msg("Session started")
	s.emit(StateInProgress)

	if expired {
		return s.countdown.Start(0)
	}
	return nil
}

// Submit sends the current answers as a manual submission. A failed manual
// submission leaves the session retryable with the countdown resumed from the
// deadline. When the deadline passed during the request, the automatic
// submission runs before Submit returns.
func (s *Session) Submit(ctx context.Context) (*model.SubmitTestResult, error) {
	return s.submit(ctx, false)
}

func (s *Session) autoSubmit() {
	s.log.Info().Msg("Time is up, submitting automatically")
	_, err := s.submit(s.autoCtx, true)
	switch {
	case err == nil:
	case errors.Is(err, ErrSubmitInFlight):
		// The manual submission in flight was already sent as automatic.
		s.log.Debug().Msg("Automatic submission skipped, another submission is in flight")
	default:
		s.log.Error().Err(err).Msg("Automatic submission failed")
	}
}

func (s *Session) submit(ctx context.Context, auto bool) (*model.SubmitTestResult, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if s.closed || !s.submittable() {
		s.mu.Unlock()
		return nil, ErrNotSubmittable
	}

	s.apply(evSubmit)
	s.countdown.Stop()
	// Once the deadline passed every attempt is an automatic one, including a
	// candidate retrying after the automatic submission failed.
	if s.autoFailed || s.countdown.State() == CountdownExpired {
		auto = true
	}
	req := &model.SubmitTestRequest{Answers: s.answers.Snapshot(), AutoSubmit: auto}
	s.mu.Unlock()
	s.emit(StateSubmitting)

	result, err := s.api.SubmitTest(ctx, s.testID, req)

	s.mu.Lock()
	if err != nil {
		s.failure = &Failure{Err: err, Retryable: true, Auto: auto}
		s.apply(evSubmitFailed)
		// The countdown was paused for the request; the deadline was not.
		expiredInFlight := false
		if auto {
			s.autoFailed = true
		} else if !s.closed {
			if remaining := s.remainingAt(s.clock.Now()); remaining > 0 {
				if startErr := s.countdown.Start(remaining); startErr != nil {
					s.log.Warn().Err(startErr).Msg("Countdown not resumed")
				}
			} else {
				expiredInFlight = true
			}
		}
		s.mu.Unlock()

		s.log.Warn().Err(err).Bool("auto", auto).Msg("Submission failed")
		s.emit(StateError)
		if expiredInFlight {
			if startErr := s.countdown.Start(0); startErr != nil {
				s.log.Warn().Err(startErr).Msg("Countdown not expired")
			}
		}
		return nil, err
	}

	s.result = result
	s.failure = nil
	s.apply(evSubmitted)
	s.mu.Unlock()

	s.log.Info().
		Int64("session_id", result.SessionID).
		Int("score", result.Score).
		Int("total_points", result.TotalPoints).
		Str("status", string(result.Status)).
		Msg("Session submitted")
	s.emit(StateCompleted)
	s.finish()
	return result, nil
}

// SetAnswer records answer for questionID, overwriting any earlier answer.
func (s *Session) SetAnswer(questionID int64, answer string) error {
	s.mu.Lock()
	if !s.editable() {
		s.mu.Unlock()
		return ErrReadOnly
	}
	if !s.hasQuestion(questionID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	s.answers.Set(questionID, answer)
	saver := s.autosaver
	s.mu.Unlock()

	if saver != nil {
		if err := saver.Autosave(s.autoCtx, questionID, answer); err != nil {
			s.log.Warn().Err(err).Int64("question_id", questionID).Msg("Autosave failed")
		}
	}
	return nil
}

func (s *Session) Answer(questionID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Get(questionID)
}

// Answers returns a copy of the current answers.
func (s *Session) Answers() map[int64]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Snapshot()
}

// Next moves to the following question and returns the new index.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Next()
}

// Prev moves to the previous question and returns the new index.
func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Prev()
}

// Goto jumps to question i, clamped into range.
func (s *Session) Goto(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Goto(i)
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Index()
}

// Current returns the displayed question. ok is false before the session started.
func (s *Session) Current() (q model.CandidateQuestion, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return q, false
	}
	return s.questions[s.nav.Index()], true
}

func (s *Session) Questions() []model.CandidateQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CandidateQuestion(nil), s.questions...)
}

func (s *Session) Test() model.Test {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.test
}

func (s *Session) SessionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the seconds left on the countdown.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// Err returns the last failure, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	return s.failure.Err
}

// Failure returns details of the last failure, or nil.
func (s *Session) Failure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	f := *s.failure
	return &f
}

// Result returns the accepted submission, or nil.
func (s *Session) Result() *model.SubmitTestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed once the session completed or failed to start.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down: the countdown stops and a pending automatic
// submission is cancelled. It does not submit.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.countdown.Stop()
	s.autoCancel()
}

// apply must be called with s.mu held.
func (s *Session) apply(ev event) {
	next, ok := transition(s.state, ev)
	if !ok {
		s.log.Error().Str("state", s.state.String()).Int("event", int(ev)).Msg("Invalid session transition")
		return
	}
	s.state = next
}

// remainingAt is the whole seconds left before the deadline at now, rounded up
// and never above what the countdown last showed.
func (s *Session) remainingAt(now time.Time) int {
	left := s.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int((left + time.Second - 1) / time.Second)
	return min(secs, s.countdown.Remaining())
}

func (s *Session) submittable() bool {
	switch s.state {
	case StateInProgress:
		return true
	case StateError:
		return s.failure != nil && s.failure.Retryable
	}
	return false
}

func (s *Session) editable() bool {
	if s.closed || s.autoFailed {
		return false
	}
	switch s.state {
	case StateInProgress:
		return true
	case StateError:
		return s.failure != nil && s.failure.Retryable
	}
	return false
}

func (s *Session) hasQuestion(id int64) bool {
	for _, q := range s.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) emit(st State) {
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// validateStart rejects start responses a front end could not render.
func validateStart(resp *model.StartSessionResponse) error {
	if resp == nil || len(resp.Questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[int64]struct{}, len(resp.Questions))
	for _, q := range resp.Questions {
		if q.ID <= 0 {
			return fmt.Errorf("%w: invalid id %d", ErrMalformedQuestion, q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrMalformedQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrMalformedQuestion, q.ID)
		}

		switch q.Type {
		case model.QuestionTypeMCQ:
			if n := len(q.OptionList()); n < 2 || n > model.MaxOptions {
				return fmt.Errorf("%w: question %d has %d options", ErrMalformedQuestion, q.ID, n)
			}
		case model.QuestionTypeTrueFalse, model.QuestionTypeShortAnswer:
		default:
			return fmt.Errorf("%w: question %d has unknown type %q", ErrMalformedQuestion, q.ID, q.Type)
		}
	}
	return nil
}
