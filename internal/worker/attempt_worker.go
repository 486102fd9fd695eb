package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
	AttemptMaxRetries   = 5
)

// AttemptStore is where finished attempts end up.
type AttemptStore interface {
	BulkInsert(ctx context.Context, batch []*model.AttemptRecord) error
	Insert(ctx context.Context, a *model.AttemptRecord) error
}

// attemptPayload is the queue entry. Retries counts failed single inserts.
type attemptPayload struct {
	model.AttemptRecord
	Retries int `json:"retries,omitempty"`
}

// ----------------------------------------------------------------
// Producer side
// ----------------------------------------------------------------

// AttemptQueue hands finished attempts to the worker through Redis.
type AttemptQueue struct {
	rdb *redis.Client
}

// NewAttemptQueue creates an AttemptQueue.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb}
}

// SaveAttempt enqueues rec for persistence.
func (q *AttemptQueue) SaveAttempt(ctx context.Context, rec model.AttemptRecord) error {
	raw, err := json.Marshal(attemptPayload{AttemptRecord: rec})
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue attempt: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------
// Consumer side
// ----------------------------------------------------------------

// AttemptWorker drains the attempt queue into the store in batches.
type AttemptWorker struct {
	store AttemptStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewAttemptWorker(store AttemptStore, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "attempt_worker").Logger(),
	}
}

// Start blocks until ctx is done, then flushes what it holds.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*attemptPayload, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p attemptPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flushSafe writes the batch in one statement and falls back to row by row
// inserts. Rows that still fail go back on the queue until they run out of
// retries.
func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*attemptPayload) {
	if len(batch) == 0 {
		return
	}

	records := make([]*model.AttemptRecord, len(batch))
	for i, p := range batch {
		records[i] = &p.AttemptRecord
	}

	err := w.store.BulkInsert(ctx, records)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Attempts persisted")
		return
	}
	w.log.Warn().Err(err).Msg("bulk attempt insert failed, using fallback")

	for _, p := range batch {
		if err := w.store.Insert(ctx, &p.AttemptRecord); err != nil {
			w.requeue(ctx, p, err)
		}
	}
}

func (w *AttemptWorker) requeue(ctx context.Context, p *attemptPayload, cause error) {
	p.Retries++
	logEvt := w.log.Error().Err(cause).
		Str("attempt_id", p.ID.String()).
		Str("learner_id", p.LearnerID).
		Int("retries", p.Retries)

	if p.Retries > AttemptMaxRetries {
		logEvt.Msg("Attempt dropped after max retries")
		return
	}
	logEvt.Msg("Insert failed, requeueing")

	raw, _ := json.Marshal(p)
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("attempt_id", p.ID.String()).Msg("Requeue failed")
	}
}
