package testsession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("connection reset by peer")

func newSession(t *testing.T, api *fakeAPI, opts ...Option) (*Session, *manualClock) {
	t.Helper()
	clock := newManualClock()
	s := New(api, 7, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(s.Close)
	return s, clock
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, time.Millisecond,
		"state stayed %s, want %s", s.State(), want)
}

func TestSession_ManualSubmitBeforeExpiry(t *testing.T) {
	api := &fakeAPI{start: startResponse(60, threeQuestions()...)}
	s, _ := newSession(t, api)

	require.NoError(t, s.Begin(context.Background()))
	assert.Equal(t, StateInProgress, s.State())
	assert.Equal(t, int64(42), s.SessionID())
	assert.Equal(t, 60, s.Remaining())

	require.NoError(t, s.SetAnswer(1, "B"))
	s.Next()
	assert.Equal(t, 2, s.Next())
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(3), current.ID)

	result, err := s.Submit(context.Background())
	require.NoError(t, err)

	sent := api.submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, map[int64]string{1: "B"}, sent[0].Answers)
	assert.False(t, sent[0].AutoSubmit)

	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, model.SessionStatusSubmitted, result.Status)
	assert.Same(t, result, s.Result())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after completion")
	}
}

func TestSession_AutoSubmitWhenTimeRunsOut(t *testing.T) {
	api := &fakeAPI{start: startResponse(5, threeQuestions()...)}
	s, clock := newSession(t, api)

	require.NoError(t, s.Begin(context.Background()))
	clock.Advance(4)
	assert.Empty(t, api.submitted())

	clock.Advance(1)
	waitState(t, s, StateCompleted)

	sent := api.submitted()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Answers)
	assert.NotNil(t, sent[0].Answers)
	assert.True(t, sent[0].AutoSubmit)
	assert.Equal(t, 0, s.Remaining())
	assert.Equal(t, model.SessionStatusAutoSubmitted, s.Result().Status)
}

func TestSession_StartFailureBlocksEverything(t *testing.T) {
	api := &fakeAPI{startErr: errors.New("session already completed")}
	s, clock := newSession(t, api)

	err := s.Begin(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateError, s.State())
	assert.EqualError(t, s.Err(), "session already completed")
	assert.False(t, s.Failure().Retryable)
	assert.Zero(t, clock.count(), "countdown must not start")

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotSubmittable)
	assert.ErrorIs(t, s.SetAnswer(1, "A"), ErrReadOnly)
	assert.Empty(t, api.submitted())

	assert.ErrorIs(t, s.Begin(context.Background()), ErrAlreadyBegun)
	assert.Equal(t, 1, api.startCalls)
	<-s.Done()
}

func TestSession_ManualFailureCanBeRetried(t *testing.T) {
	api := &fakeAPI{
		start:      startResponse(60, threeQuestions()...),
		submitErrs: []error{errNetwork},
	}
	s, clock := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.SetAnswer(2, "true"))

	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, errNetwork)

	assert.Equal(t, StateError, s.State())
	assert.ErrorIs(t, s.Err(), errNetwork)
	assert.True(t, s.Failure().Retryable)
	assert.False(t, s.Failure().Auto)
	assert.Equal(t, 2, clock.count(), "countdown resumes after a manual failure")

	clock.Advance(1)
	require.Eventually(t, func() bool { return s.Remaining() == 59 }, time.Second, time.Millisecond)

	// The candidate may still change answers before retrying.
	require.NoError(t, s.SetAnswer(2, "false"))

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	sent := api.submitted()
	require.Len(t, sent, 2)
	assert.False(t, sent[1].AutoSubmit)
	assert.Equal(t, map[int64]string{2: "false"}, sent[1].Answers)
	assert.Equal(t, StateCompleted, s.State())
	assert.Nil(t, s.Err())
}

func TestSession_SecondSubmitWhileInFlight(t *testing.T) {
	api := &fakeAPI{
		start:   startResponse(60, threeQuestions()...),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s, _ := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Submit(context.Background())
	}()
	<-api.entered

	assert.Equal(t, StateSubmitting, s.State())
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, s.SetAnswer(1, "A"), ErrReadOnly)

	close(api.gate)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Len(t, api.submitted(), 1)

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotSubmittable)
	assert.Len(t, api.submitted(), 1)
}

func TestSession_ExpiredOnResumeSubmitsImmediately(t *testing.T) {
	start := startResponse(0, threeQuestions()...)
	start.SavedAnswers = map[int64]string{1: "C"}
	api := &fakeAPI{start: start}
	s, clock := newSession(t, api)

	require.NoError(t, s.Begin(context.Background()))

	sent := api.submitted()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].AutoSubmit)
	assert.Equal(t, map[int64]string{1: "C"}, sent[0].Answers)
	assert.Equal(t, StateCompleted, s.State())
	assert.Zero(t, clock.count())
}

func TestSession_AutoFailureWaitsForRetry(t *testing.T) {
	api := &fakeAPI{
		start:      startResponse(2, threeQuestions()...),
		submitErrs: []error{errNetwork},
	}
	var (
		mu     sync.Mutex
		states []State
	)
	s, clock := newSession(t, api, WithStateHandler(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}))
	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.SetAnswer(3, "nil"))

	clock.Advance(2)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, StateError, s.State())

	f := s.Failure()
	require.NotNil(t, f)
	assert.True(t, f.Auto)
	assert.True(t, f.Retryable)
	assert.Len(t, api.submitted(), 1, "automatic submission is attempted exactly once")
	assert.Equal(t, 1, clock.count(), "no countdown after the deadline")
	assert.ErrorIs(t, s.SetAnswer(3, "null"), ErrReadOnly)

	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	sent := api.submitted()
	require.Len(t, sent, 2)
	assert.True(t, sent[1].AutoSubmit, "a retry after the deadline stays automatic")
	assert.Equal(t, map[int64]string{3: "nil"}, sent[1].Answers)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StateInProgress, StateSubmitting, StateError, StateSubmitting, StateCompleted,
	}, states)
}

func TestSession_LastEditWins(t *testing.T) {
	api := &fakeAPI{start: startResponse(60, threeQuestions()...)}
	s, _ := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	for _, a := range []string{"A", "B", "C"} {
		require.NoError(t, s.SetAnswer(1, a))
	}
	answer, ok := s.Answer(1)
	require.True(t, ok)
	assert.Equal(t, "C", answer)

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "C"}, api.submitted()[0].Answers)
}

func TestSession_NavigationNeverTouchesAnswers(t *testing.T) {
	api := &fakeAPI{start: startResponse(60, threeQuestions()...)}
	s, _ := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.SetAnswer(2, "true"))
	before := s.Answers()

	for i := 0; i < 5; i++ {
		idx := s.Prev()
		assert.GreaterOrEqual(t, idx, 0)
	}
	for i := 0; i < 5; i++ {
		idx := s.Next()
		assert.LessOrEqual(t, idx, 2)
	}
	assert.Equal(t, 2, s.Index())
	assert.Equal(t, 0, s.Goto(-3))
	assert.Equal(t, before, s.Answers())
}

func TestSession_RejectsUnknownQuestion(t *testing.T) {
	api := &fakeAPI{start: startResponse(60, threeQuestions()...)}
	s, _ := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	assert.ErrorIs(t, s.SetAnswer(99, "A"), ErrUnknownQuestion)
	assert.Empty(t, s.Answers())
}

func TestSession_ResumeKeepsKnownSavedAnswers(t *testing.T) {
	start := startResponse(30, threeQuestions()...)
	start.SavedAnswers = map[int64]string{2: "false", 99: "orphan"}
	api := &fakeAPI{start: start}
	s, _ := newSession(t, api)

	require.NoError(t, s.Begin(context.Background()))
	assert.Equal(t, map[int64]string{2: "false"}, s.Answers())
}

func TestSession_MalformedStartResponses(t *testing.T) {
	tests := []struct {
		name  string
		start *model.StartSessionResponse
		want  error
	}{
		{"no questions", startResponse(60), ErrNoQuestions},
		{"nil response", nil, ErrNoQuestions},
		{"mcq without options", startResponse(60, model.CandidateQuestion{ID: 1, Text: "Pick", Type: model.QuestionTypeMCQ, Options: "only"}), ErrMalformedQuestion},
		{"unknown type", startResponse(60, model.CandidateQuestion{ID: 1, Text: "Write", Type: "ESSAY"}), ErrMalformedQuestion},
		{"more options than letters", startResponse(60, model.CandidateQuestion{ID: 1, Text: "Pick", Type: model.QuestionTypeMCQ,
			Options: strings.Repeat("x,", model.MaxOptions) + "y"}), ErrMalformedQuestion},
		{"blank text", startResponse(60, model.CandidateQuestion{ID: 1, Text: "  ", Type: model.QuestionTypeTrueFalse}), ErrMalformedQuestion},
		{"duplicate id", startResponse(60,
			model.CandidateQuestion{ID: 1, Text: "One", Type: model.QuestionTypeTrueFalse},
			model.CandidateQuestion{ID: 1, Text: "Two", Type: model.QuestionTypeShortAnswer}), ErrMalformedQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{start: tt.start}
			s, clock := newSession(t, api)

			assert.ErrorIs(t, s.Begin(context.Background()), tt.want)
			assert.Equal(t, StateError, s.State())
			assert.Zero(t, clock.count())
		})
	}
}

func TestSession_CloseStopsCountdown(t *testing.T) {
	api := &fakeAPI{start: startResponse(3, threeQuestions()...)}
	s, clock := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	s.Close()
	clock.Advance(3)

	assert.Equal(t, 3, s.Remaining())
	assert.Empty(t, api.submitted())
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotSubmittable)
}

func TestSession_AutosaverReceivesEdits(t *testing.T) {
	saver := &recordingSaver{err: errNetwork}
	api := &fakeAPI{start: startResponse(60, threeQuestions()...)}
	s, _ := newSession(t, api, WithAutosaver(saver))
	require.NoError(t, s.Begin(context.Background()))

	// Autosave failures never block the local answer.
	require.NoError(t, s.SetAnswer(1, "A"))
	require.NoError(t, s.SetAnswer(1, "B"))

	saver.mu.Lock()
	assert.Equal(t, map[int64]string{1: "B"}, saver.saved)
	saver.mu.Unlock()
	answer, _ := s.Answer(1)
	assert.Equal(t, "B", answer)
}

func TestSession_TickHandler(t *testing.T) {
	seen := make(chan int, 10)
	api := &fakeAPI{start: startResponse(3, threeQuestions()...)}
	s, clock := newSession(t, api, WithTickHandler(func(r int) { seen <- r }))
	require.NoError(t, s.Begin(context.Background()))

	clock.Advance(3)
	waitState(t, s, StateCompleted)

	assert.Equal(t, 2, <-seen)
	assert.Equal(t, 1, <-seen)
	assert.Equal(t, 0, <-seen)
}

func TestSession_FailedSubmitResumesFromDeadline(t *testing.T) {
	api := &fakeAPI{
		start:      startResponse(10, threeQuestions()...),
		submitErrs: []error{errNetwork},
		gate:       make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
	s, clock := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	clock.Advance(4)
	require.Eventually(t, func() bool { return s.Remaining() == 6 }, time.Second, time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		errc <- err
	}()
	<-api.entered

	// The request hangs for three seconds before failing.
	clock.Pass(3 * time.Second)
	close(api.gate)
	require.ErrorIs(t, <-errc, errNetwork)

	assert.Equal(t, 3, s.Remaining(), "time spent in flight is not given back")
	assert.Equal(t, 2, clock.count())

	clock.Advance(3)
	waitState(t, s, StateCompleted)

	sent := api.submitted()
	require.Len(t, sent, 2)
	assert.False(t, sent[0].AutoSubmit)
	assert.True(t, sent[1].AutoSubmit)
}

func TestSession_DeadlinePassesDuringFailedSubmit(t *testing.T) {
	api := &fakeAPI{
		start:      startResponse(5, threeQuestions()...),
		submitErrs: []error{errNetwork},
		gate:       make(chan struct{}),
		entered:    make(chan struct{}, 2),
	}
	s, clock := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.SetAnswer(1, "B"))

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		errc <- err
	}()
	<-api.entered

	clock.Pass(6 * time.Second)
	close(api.gate)
	require.ErrorIs(t, <-errc, errNetwork)

	// The automatic submission went out before the manual one returned.
	sent := api.submitted()
	require.Len(t, sent, 2)
	assert.False(t, sent[0].AutoSubmit)
	assert.True(t, sent[1].AutoSubmit)
	assert.Equal(t, map[int64]string{1: "B"}, sent[1].Answers)
	assert.Equal(t, StateCompleted, s.State())
	assert.Zero(t, s.Remaining())
	assert.Equal(t, 1, clock.count(), "no countdown restarted past the deadline")
}

func TestSession_ExpiryRacingManualSubmitSendsOnce(t *testing.T) {
	api := &fakeAPI{
		start:   startResponse(1, threeQuestions()...),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	logs := &lockedBuffer{}

	var (
		s         *Session
		manualErr error
	)
	manualDone := make(chan struct{})
	// The candidate presses submit just as the last tick lands, before the
	// expiry callback runs.
	onTick := func(remaining int) {
		if remaining != 0 {
			return
		}
		go func() {
			defer close(manualDone)
			_, manualErr = s.Submit(context.Background())
		}()
		<-api.entered
	}
	s, clock := newSession(t, api,
		WithTickHandler(onTick),
		WithLogger(zerolog.New(logs).Level(zerolog.DebugLevel)))
	require.NoError(t, s.Begin(context.Background()))

	clock.Advance(1)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "another submission is in flight")
	}, time.Second, time.Millisecond)
	assert.NotContains(t, logs.String(), "Automatic submission failed")

	close(api.gate)
	<-manualDone
	require.NoError(t, manualErr)

	sent := api.submitted()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].AutoSubmit, "a submission after the deadline is automatic")
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, model.SessionStatusAutoSubmitted, s.Result().Status)
}

func TestSession_ManualSubmitDropsPendingTick(t *testing.T) {
	api := &fakeAPI{
		start:   startResponse(1, threeQuestions()...),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s, clock := newSession(t, api)
	require.NoError(t, s.Begin(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		errc <- err
	}()
	<-api.entered

	clock.Advance(1)
	close(api.gate)
	require.NoError(t, <-errc)

	sent := api.submitted()
	require.Len(t, sent, 1)
	assert.False(t, sent[0].AutoSubmit)
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 1, s.Remaining())
}
