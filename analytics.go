package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	recorderQueueSize     = 1024
	recorderBatchSize     = 50
	recorderFlushInterval = 5 * time.Second
	recorderWriteTimeout  = 10 * time.Second
)

// OutcomeSink persists or forwards a batch of finished matches
type OutcomeSink interface {
	RecordOutcomes(ctx context.Context, outcomes []MatchOutcome) error
}

// Recorder hands finished matches to its sinks in batches from a background
// goroutine, so the tick path never waits on storage.
type Recorder struct {
	sinks   []OutcomeSink
	logger  *slog.Logger
	queue   chan MatchOutcome
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	stopped sync.Once
}

// NewRecorder creates and starts the recorder
func NewRecorder(logger *slog.Logger, sinks ...OutcomeSink) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan MatchOutcome, recorderQueueSize),
		stop:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Track enqueues an outcome (non-blocking). A full queue drops it.
func (r *Recorder) Track(o MatchOutcome) {
	select {
	case r.queue <- o:
	default:
		r.dropped.Add(1)
		r.logger.Warn("outcome queue full, dropping", "room_id", o.RoomID)
	}
}

// Dropped returns how many outcomes were dropped on a full queue
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Stop flushes everything queued and waits for the writer to exit
func (r *Recorder) Stop() {
	r.stopped.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Recorder) writer() {
	defer r.wg.Done()

	batch := make([]MatchOutcome, 0, recorderBatchSize)
	ticker := time.NewTicker(recorderFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case o := <-r.queue:
			batch = append(batch, o)
			if len(batch) >= recorderBatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			for {
				select {
				case o := <-r.queue:
					batch = append(batch, o)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes batch to every sink; one failing sink does not stop the others
func (r *Recorder) flush(batch []MatchOutcome) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()
	for _, sink := range r.sinks {
		if err := sink.RecordOutcomes(ctx, batch); err != nil {
			r.logger.Error("record outcomes", "count", len(batch), "error", err)
		}
	}
}
