package testsession

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
)

// manualClock hands out tickers that only fire when Advance is called. Its
// time moves one second per delivered tick, or by Pass.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pass moves the time forward without delivering ticks.
func (c *manualClock) Pass(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance delivers n ticks to the newest ticker. It returns early once that
// ticker is stopped.
func (c *manualClock) Advance(n int) {
	c.mu.Lock()
	if len(c.tickers) == 0 {
		c.mu.Unlock()
		return
	}
	t := c.tickers[len(c.tickers)-1]
	c.mu.Unlock()

	for i := 0; i < n; i++ {
		c.Pass(time.Second)
		select {
		case t.c <- c.Now():
		case <-t.stopped:
			return
		}
	}
}

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

// fakeAPI records every request. Submit errors are consumed in order.
type fakeAPI struct {
	mu         sync.Mutex
	start      *model.StartSessionResponse
	startErr   error
	startCalls int
	submitErrs []error
	submits    []model.SubmitTestRequest

	// gate, when set, blocks SubmitTest until closed. entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) StartTest(ctx context.Context, testID int64) (*model.StartSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.start, nil
}

func (f *fakeAPI) SubmitTest(ctx context.Context, testID int64, req *model.SubmitTestRequest) (*model.SubmitTestResult, error) {
	f.mu.Lock()
	f.submits = append(f.submits, *req)
	var err error
	if len(f.submitErrs) > 0 {
		err = f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	status := model.SessionStatusSubmitted
	if req.AutoSubmit {
		status = model.SessionStatusAutoSubmitted
	}
	return &model.SubmitTestResult{
		SessionID:   f.start.SessionID,
		Score:       len(req.Answers),
		TotalPoints: len(f.start.Questions),
		Status:      status,
	}, nil
}

func (f *fakeAPI) submitted() []model.SubmitTestRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SubmitTestRequest(nil), f.submits...)
}

func startResponse(seconds int, questions ...model.CandidateQuestion) *model.StartSessionResponse {
	return &model.StartSessionResponse{
		SessionID:            42,
		Test:                 model.Test{ID: 7, Title: "Go basics", DurationMinutes: 1},
		Questions:            questions,
		TimeRemainingSeconds: seconds,
	}
}

func threeQuestions() []model.CandidateQuestion {
	return []model.CandidateQuestion{
		{ID: 1, Text: "Pick one", Type: model.QuestionTypeMCQ, Options: "red,green,blue", Points: 1},
		{ID: 2, Text: "Maps are reference types", Type: model.QuestionTypeTrueFalse, Points: 1},
		{ID: 3, Text: "Name the zero value of a pointer", Type: model.QuestionTypeShortAnswer, Points: 1},
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saved map[int64]string
	err   error
}

func (r *recordingSaver) Autosave(ctx context.Context, questionID int64, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[int64]string)
	}
	r.saved[questionID] = answer
	return r.err
}

// lockedBuffer collects log output written from the countdown goroutine.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
