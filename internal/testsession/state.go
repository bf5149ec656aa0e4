package testsession

// State is the session-level view state. Exactly one is active at a time.
type State int

const (
	StateLoading State = iota
	StateInProgress
	StateSubmitting
	StateCompleted
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateInProgress:
		return "in-progress"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	}
	return "unknown"
}

type event int

const (
	evStarted event = iota
	evStartFailed
	evSubmit
	evSubmitted
	evSubmitFailed
)

// transition is the only place session states change.
func transition(from State, ev event) (State, bool) {
	switch from {
	case StateLoading:
		switch ev {
		case evStarted:
			return StateInProgress, true
		case evStartFailed:
			return StateError, true
		}
	case StateInProgress, StateError:
		if ev == evSubmit {
			return StateSubmitting, true
		}
	case StateSubmitting:
		switch ev {
		case evSubmitted:
			return StateCompleted, true
		case evSubmitFailed:
			return StateError, true
		}
	}
	return from, false
}

// Failure describes why a session is in StateError.
type Failure struct {
	Err error
	// Retryable is false only when the session never started.
	Retryable bool
	// Auto is set when the failed request was the automatic submission.
	Auto bool
}
