// Package chatsync keeps a transcript in step with a conversation on the
// dashboard server by polling for messages newer than a watermark.
//
// The server must return each batch in strictly ascending id order, every id
// greater than the requested watermark. The engine relies on that ordering
// and does not sort.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"dashsync/internal/logging"
	"dashsync/internal/metrics"
	"dashsync/internal/models"
)

// DefaultInterval is the poll period used when Run is given zero.
const DefaultInterval = 1500 * time.Millisecond

// ErrPollInFlight is returned when a poll is requested while another one has
// not completed yet.
var ErrPollInFlight = errors.New("poll already in flight")

// Fetcher returns messages with id greater than lastID, ascending.
type Fetcher interface {
	FetchSince(ctx context.Context, lastID int64) ([]models.Message, error)
}

// Transcript is the append-only view the engine renders into.
type Transcript interface {
	Append(msg models.Message) error
	ScrollToEnd()
}

// PollResult summarizes one poll.
type PollResult struct {
	Appended   int
	Duplicates int
	LastSeenID int64
}

// Engine owns the watermark of one conversation view.
type Engine struct {
	fetcher    Fetcher
	transcript Transcript
	logger     *zap.Logger
	metrics    *metrics.Metrics

	inflight *semaphore.Weighted

	mu         sync.RWMutex
	lastSeenID int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; nil means no logging.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = logging.OrNop(l) } }

// WithMetrics records poll outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// NewEngine starts the watermark at initialID, the highest id already present
// in the initial render.
func NewEngine(fetcher Fetcher, transcript Transcript, initialID int64, opts ...Option) *Engine {
	e := &Engine{
		fetcher:    fetcher,
		transcript: transcript,
		logger:     zap.NewNop(),
		inflight:   semaphore.NewWeighted(1),
		lastSeenID: initialID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LastSeenID returns the current watermark.
func (e *Engine) LastSeenID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSeenID
}

// Poll fetches and appends everything newer than the watermark. If a poll is
// already running it returns ErrPollInFlight without touching the server.
func (e *Engine) Poll(ctx context.Context) (PollResult, error) {
	if !e.inflight.TryAcquire(1) {
		e.metrics.PollResult(metrics.ResultSkipped)
		return PollResult{LastSeenID: e.LastSeenID()}, ErrPollInFlight
	}
	defer e.inflight.Release(1)

	since := e.LastSeenID()
	batch, err := e.fetcher.FetchSince(ctx, since)
	if err != nil {
		e.metrics.PollResult(metrics.ResultError)
		return PollResult{LastSeenID: since}, fmt.Errorf("poll since %d: %w", since, err)
	}
	if len(batch) == 0 {
		e.metrics.PollResult(metrics.ResultEmpty)
		return PollResult{LastSeenID: since}, nil
	}

	res, err := e.merge(batch)
	e.metrics.MessagesAppended(res.Appended)
	e.metrics.DuplicatesDropped(res.Duplicates)
	if res.Appended > 0 {
		e.transcript.ScrollToEnd()
	}
	if err != nil {
		e.metrics.PollResult(metrics.ResultError)
		return res, err
	}
	e.metrics.PollResult(metrics.ResultOK)
	return res, nil
}

// merge appends batch in order. The watermark moves after every successful
// append so a failure mid-batch leaves it on the last rendered message.
func (e *Engine) merge(batch []models.Message) (PollResult, error) {
	var res PollResult
	for _, msg := range batch {
		current := e.LastSeenID()
		if msg.ID <= current {
			res.Duplicates++
			e.logger.Debug("dropping already incorporated message",
				zap.Int64("id", msg.ID), zap.Int64("last_seen_id", current))
			continue
		}
		if err := e.transcript.Append(msg); err != nil {
			res.LastSeenID = current
			return res, fmt.Errorf("append message %d: %w", msg.ID, err)
		}
		e.mu.Lock()
		e.lastSeenID = msg.ID
		e.mu.Unlock()
		res.Appended++
	}
	res.LastSeenID = e.LastSeenID()
	return res, nil
}

// Run polls every interval until ctx is done. Ticks fire on schedule whether
// or not the previous poll finished; a tick that finds a poll in flight is
// skipped. Failures are logged and retried by the next tick.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.tick(ctx)
			}()
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	res, err := e.Poll(ctx)
	switch {
	case errors.Is(err, ErrPollInFlight):
		e.logger.Debug("previous poll still running, skipping tick")
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		e.logger.Debug("poll failed, retrying next tick", zap.Error(err))
	case res.Appended > 0:
		e.logger.Debug("messages appended",
			zap.Int("count", res.Appended),
			zap.Int64("last_seen_id", res.LastSeenID))
	}
}
