package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/testsession"
	"github.com/rs/zerolog"
)

var errLeft = errors.New("left the test without submitting")

// answerStream is an open autosave channel to the server.
type answerStream interface {
	testsession.Autosaver
	Close() error
}

type streamOpener func(ctx context.Context, testID int64) (answerStream, error)

const saveTimeout = 5 * time.Second

// streamSaver forwards autosaves from its own goroutine so a slow connection
// never holds up the input loop. While a write is pending only the latest
// answer per question is kept. The first failed write detaches the stream;
// answers still reach the server with the submission.
type streamSaver struct {
	log zerolog.Logger

	mu      sync.Mutex
	stream  answerStream
	pending map[int64]string
	running bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newStreamSaver(log zerolog.Logger) *streamSaver {
	return &streamSaver{
		log:     log,
		pending: make(map[int64]string),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *streamSaver) attach(stream answerStream) {
	s.mu.Lock()
	s.stream = stream
	s.running = true
	s.mu.Unlock()
	go s.run()
}

// Autosave queues the answer and returns at once. Without a stream it is a no-op.
func (s *streamSaver) Autosave(_ context.Context, questionID int64, answer string) error {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return nil
	}
	s.pending[questionID] = answer
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *streamSaver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			if !s.flush() {
				return
			}
		case <-s.stop:
			s.flush()
			return
		}
	}
}

// flush writes every pending answer. It reports false once the stream is gone.
func (s *streamSaver) flush() bool {
	s.mu.Lock()
	stream, batch := s.stream, s.pending
	s.pending = make(map[int64]string)
	s.mu.Unlock()
	if stream == nil {
		return false
	}

	for qid, answer := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := stream.Autosave(ctx, qid, answer)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Int64("question_id", qid).
				Msg("Autosave stream failed, answers are sent on submit only")
			s.detach()
			return false
		}
	}
	return true
}

func (s *streamSaver) detach() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.pending = make(map[int64]string)
	s.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// close writes what is still pending, then closes the stream.
func (s *streamSaver) close() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		close(s.stop)
		<-s.done
	}
	s.detach()
}

// runner is the interactive test-taking loop.
type runner struct {
	in         io.Reader
	out        io.Writer
	log        zerolog.Logger
	clock      testsession.Clock
	openStream streamOpener
}

func (r *runner) take(ctx context.Context, api testsession.API, testID int64) (*model.SubmitTestResult, error) {
	autoFailed := make(chan struct{}, 1)
	lowTime := make(chan int, 1)
	saver := newStreamSaver(r.log)
	defer saver.close()

	opts := []testsession.Option{
		testsession.WithLogger(r.log),
		testsession.WithAutosaver(saver),
		testsession.WithTickHandler(func(remaining int) {
			if remaining == testsession.LowTimeThreshold-1 || remaining == 60 {
				select {
				case lowTime <- remaining:
				default:
				}
			}
		}),
	}
	if r.clock != nil {
		opts = append(opts, testsession.WithClock(r.clock))
	}

	var session *testsession.Session
	opts = append(opts, testsession.WithStateHandler(func(st testsession.State) {
		if st != testsession.StateError || session == nil {
			return
		}
		if f := session.Failure(); f != nil && f.Auto {
			select {
			case autoFailed <- struct{}{}:
			default:
			}
		}
	}))

	session = testsession.New(api, testID, opts...)
	defer session.Close()

	fmt.Fprintln(r.out, "Starting test...")
	if err := session.Begin(ctx); err != nil {
		return nil, fmt.Errorf("could not start the test: %w", err)
	}

	select {
	case <-session.Done():
		// Resumed past the deadline: the automatic submission already ran.
		return r.finish(session)
	default:
	}

	if r.openStream != nil {
		if stream, err := r.openStream(ctx, testID); err != nil {
			r.log.Warn().Err(err).Msg("Autosave stream unavailable, answers are sent on submit only")
		} else {
			saver.attach(stream)
		}
	}

	test := session.Test()
	fmt.Fprintf(r.out, "%s: %d questions, %s left.\n", test.Title, len(session.Questions()),
		testsession.FormatRemaining(session.Remaining()))
	fmt.Fprintln(r.out, "Type h for help.")
	renderQuestion(r.out, session)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-session.Done():
			return r.finish(session)

		case <-autoFailed:
			fmt.Fprintf(r.out, "\nTime is up, but the automatic submission failed: %v\nType s to try again.\n", session.Err())

		case left := <-lowTime:
			fmt.Fprintf(r.out, "\nOnly %s left!\n", testsession.FormatRemaining(left))

		case line, ok := <-lines:
			if !ok {
				// Input is gone; the countdown still submits on expiry.
				lines = nil
				continue
			}
			if err := r.handle(ctx, session, line); err != nil {
				return nil, err
			}
			select {
			case <-session.Done():
				return r.finish(session)
			default:
			}
		}
	}
}

// handle runs one command line. Only leaving the test returns an error.
func (r *runner) handle(ctx context.Context, s *testsession.Session, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
		renderQuestion(r.out, s)

	case "a":
		q, ok := s.Current()
		if !ok {
			return nil
		}
		answer, err := normalizeAnswer(q, arg)
		if err != nil {
			fmt.Fprintf(r.out, "Invalid answer: %v\n", err)
			return nil
		}
		if err := s.SetAnswer(q.ID, answer); err != nil {
			fmt.Fprintf(r.out, "Cannot change the answer: %v\n", err)
			return nil
		}
		fmt.Fprintf(r.out, "Saved %s for question %d.\n", answer, s.Index()+1)

	case "n":
		s.Next()
		renderQuestion(r.out, s)

	case "p":
		s.Prev()
		renderQuestion(r.out, s)

	case "g":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(r.out, "Usage: g <question number>")
			return nil
		}
		s.Goto(n - 1)
		renderQuestion(r.out, s)

	case "l":
		renderOverview(r.out, s)

	case "s":
		fmt.Fprintln(r.out, "Submitting...")
		_, err := s.Submit(ctx)
		switch {
		case err == nil:
			// Done() is closed; the main loop prints the result.
		case errors.Is(err, testsession.ErrSubmitInFlight):
			fmt.Fprintln(r.out, "A submission is already on its way.")
		default:
			fmt.Fprintf(r.out, "Submission failed: %v\nType s to try again.\n", err)
		}

	case "q":
		fmt.Fprintln(r.out, "Leaving without submitting. The attempt stays open until its time runs out.")
		return errLeft

	case "h", "help", "?":
		fmt.Fprintln(r.out, helpText)

	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type h for help.\n", cmd)
	}
	return nil
}

func (r *runner) finish(s *testsession.Session) (*model.SubmitTestResult, error) {
	if res := s.Result(); res != nil {
		renderSubmitResult(r.out, res)
		return res, nil
	}
	return nil, s.Err()
}
