package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierFIFO(t *testing.T) {
	t.Parallel()

	f := newFrontier()
	f.Push("a")
	f.Push("b")
	f.Push("c")
	assert.Equal(t, 3, f.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := f.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestFrontierCloseDrainsRemaining(t *testing.T) {
	t.Parallel()

	f := newFrontier()
	f.Push("a")
	f.Close()

	got, ok := f.Pop()
	require.True(t, ok, "items pushed before Close are still handed out")
	assert.Equal(t, "a", got)

	_, ok = f.Pop()
	assert.False(t, ok)
}

func TestFrontierPushAfterCloseDropped(t *testing.T) {
	t.Parallel()

	f := newFrontier()
	f.Close()
	f.Push("late")
	_, ok := f.Pop()
	assert.False(t, ok)
}

func TestFrontierCloseUnblocksPop(t *testing.T) {
	t.Parallel()

	f := newFrontier()
	done := make(chan bool, 1)
	go func() {
		_, ok := f.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	f.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Close")
	}
}

func TestSeenSet(t *testing.T) {
	t.Parallel()

	s := newSeenSet()

	require.True(t, s.MarkPending("u"))
	assert.False(t, s.MarkPending("u"), "pending URLs cannot be enqueued twice")
	assert.True(t, s.Seen("u"))

	require.True(t, s.ClaimVisit("u"))
	assert.False(t, s.ClaimVisit("u"), "only one worker wins the claim")
	assert.False(t, s.MarkPending("u"), "visited URLs never re-enter the frontier")
	assert.True(t, s.Seen("u"))
	assert.Equal(t, 1, s.VisitedCount())

	assert.False(t, s.Seen("other"))
}
