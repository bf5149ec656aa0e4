package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFinalizer struct {
	mock.Mock
	mu    sync.Mutex
	calls int
}

func (m *mockFinalizer) FinalizeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockFinalizer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestExpiryWorker_SweepsUntilCancelled(t *testing.T) {
	f := &mockFinalizer{}
	f.On("FinalizeExpired", mock.Anything).Return(1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewExpiryWorker(f, 10*time.Millisecond, zerolog.Nop()).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestExpiryWorker_KeepsRunningAfterErrors(t *testing.T) {
	f := &mockFinalizer{}
	f.On("FinalizeExpired", mock.Anything).Return(0, errors.New("db down"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewExpiryWorker(f, 10*time.Millisecond, zerolog.Nop()).Start(ctx)

	assert.Eventually(t, func() bool { return f.count() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestNewExpiryWorker_DefaultInterval(t *testing.T) {
	w := NewExpiryWorker(&mockFinalizer{}, 0, zerolog.Nop())
	assert.Equal(t, 30*time.Second, w.interval)
}

func TestDecodeEntry(t *testing.T) {
	e, err := decodeEntry(`{"session_id": 3, "question_id": 9, "answer": "B"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.SessionID)
	assert.Equal(t, int64(9), e.QuestionID)
	assert.Equal(t, "B", e.Answer)

	_, err = decodeEntry(`{"session_id": 3}`)
	assert.Error(t, err)

	_, err = decodeEntry(`not json`)
	assert.Error(t, err)
}
