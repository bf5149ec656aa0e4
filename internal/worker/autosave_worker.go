package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	autosavePollTimeout = time.Second
	autosaveRetryDelay  = 5 * time.Second
)

// AnswerStore persists autosaved answers.
type AnswerStore interface {
	UpsertAnswers(ctx context.Context, sessionID int64, answers map[int64]string) error
}

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AutosaveWorker struct {
	store AnswerStore
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store: store,
		rdb:   rdb,
		queue: config.WorkerKey.PersistAnswersQueue,
		log:   log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the poll timeout passes.
	result, err := w.rdb.BLPop(ctx, autosavePollTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(autosavePollTimeout)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	entry, err := decodeEntry(result[1])
	if err != nil {
		w.log.Error().Err(err).Str("payload", result[1]).Msg("Dropping malformed autosave entry")
		return
	}

	if err := w.persist(ctx, entry); err != nil {
		w.log.Error().Err(err).
			Int64("session_id", entry.SessionID).
			Int64("question_id", entry.QuestionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(context.Background(), w.queue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(autosaveRetryDelay):
		}
	}
}

func (w *AutosaveWorker) persist(ctx context.Context, e *model.AutosaveEntry) error {
	return w.store.UpsertAnswers(ctx, e.SessionID, map[int64]string{e.QuestionID: e.Answer})
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		entry, err := decodeEntry(raw)
		if err != nil {
			w.log.Error().Err(err).Msg("Drain decode error")
			continue
		}

		if err := w.persist(ctx, entry); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func decodeEntry(raw string) (*model.AutosaveEntry, error) {
	var e model.AutosaveEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	if e.SessionID <= 0 || e.QuestionID <= 0 {
		return nil, fmt.Errorf("autosave entry without ids: %q", raw)
	}
	return &e, nil
}
