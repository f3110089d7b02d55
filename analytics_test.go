package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]MatchOutcome
	err     error
}

func (m *memorySink) RecordOutcomes(_ context.Context, outcomes []MatchOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]MatchOutcome(nil), outcomes...))
	return m.err
}

func (m *memorySink) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestRecorderFlushesOnStop(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(testLogger(), sink)
	for i := 0; i < 3; i++ {
		r.Track(MatchOutcome{RoomID: "r", Winner: SideLeft})
	}
	r.Stop()
	assert.Equal(t, 3, sink.total())
	assert.Zero(t, r.Dropped())

	// Stop is idempotent.
	r.Stop()
}

func TestRecorderFlushesFullBatch(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(testLogger(), sink)
	defer r.Stop()
	for i := 0; i < recorderBatchSize; i++ {
		r.Track(MatchOutcome{RoomID: "r"})
	}
	assert.Eventually(t, func() bool { return sink.total() == recorderBatchSize }, recorderFlushInterval, 10*time.Millisecond)
}

func TestRecorderFailingSinkDoesNotStarveOthers(t *testing.T) {
	bad := &memorySink{err: errors.New("disk full")}
	good := &memorySink{}
	r := NewRecorder(testLogger(), bad, good)
	r.Track(MatchOutcome{RoomID: "r"})
	r.Stop()
	assert.Equal(t, 1, good.total())
	assert.Equal(t, 1, bad.total())
}

func TestRedisPublisherUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisPublisher(ctx, "127.0.0.1:1", "", 0, "pong:outcomes")
	assert.Error(t, err)
}
