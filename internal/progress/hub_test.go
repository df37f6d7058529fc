package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects consumed events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...), s.closed
}

func testEvent() Event {
	return Event{RunID: uuid.New(), TS: time.Now().UTC(), Stage: StageFetchRetry}
}

func TestHubDeliversAllEventsOnClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	for i := 0; i < 10; i++ {
		hub.Emit(testEvent())
	}
	require.NoError(t, hub.Close(context.Background()))

	events, closed := sink.snapshot()
	assert.Len(t, events, 10)
	assert.True(t, closed)
}

func TestHubFlushesOnBatchSize(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 3, MaxBatchWait: time.Hour}, sink)
	defer hub.Close(context.Background())

	for i := 0; i < 3; i++ {
		hub.Emit(testEvent())
	}

	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events) == 3
	}, 2*time.Second, 10*time.Millisecond, "a full batch flushes without waiting for the ticker")
}

func TestHubFlushesOnTicker(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer hub.Close(context.Background())

	hub.Emit(testEvent())

	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageFetchDone})
	require.NoError(t, hub.Close(context.Background()))

	events, _ := sink.snapshot()
	assert.Empty(t, events)
}

func TestHubNilSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(testEvent())
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubCloseIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, &captureSink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}
