package crawler

import (
	"sync"
)

// frontier is an unbounded FIFO queue of normalized URLs awaiting a crawl
// attempt. Pushes never block, so a worker can enqueue the links it just
// discovered without risking deadlock against a full buffer.
type frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	closed bool
}

func newFrontier() *frontier {
	f := &frontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push appends a URL. Pushes after Close are dropped.
func (f *frontier) Push(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.items = append(f.items, u)
	f.cond.Signal()
}

// Pop blocks until a URL is available or the frontier is closed. The
// second return is false once the frontier is closed and drained of
// nothing more to hand out.
func (f *frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.items) == 0 {
		return "", false
	}
	u := f.items[0]
	f.items = f.items[1:]
	return u, true
}

// Close wakes all blocked Pop callers; they drain remaining items and then
// receive ok=false.
func (f *frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.cond.Broadcast()
}

// Len reports the current queue depth.
func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// seenSet tracks the visited and pending URL sets behind one mutex so the
// check-and-insert pair is atomic under real parallelism. A URL is ever a
// member of at most one enqueue path: MarkPending gates frontier entry,
// ClaimVisit gates processing.
type seenSet struct {
	mu      sync.Mutex
	visited map[string]struct{}
	pending map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{
		visited: make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// MarkPending records the URL as awaiting crawl. It returns false when the
// URL was already pending or visited, so each URL enters the frontier at
// most once per run.
func (s *seenSet) MarkPending(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[u]; ok {
		return false
	}
	if _, ok := s.pending[u]; ok {
		return false
	}
	s.pending[u] = struct{}{}
	return true
}

// ClaimVisit moves a URL from pending to visited. It returns false when a
// worker already claimed it.
func (s *seenSet) ClaimVisit(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[u]; ok {
		return false
	}
	delete(s.pending, u)
	s.visited[u] = struct{}{}
	return true
}

// Seen reports membership in either set without mutating.
func (s *seenSet) Seen(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[u]; ok {
		return true
	}
	_, ok := s.pending[u]
	return ok
}

// VisitedCount returns the number of URLs claimed by workers so far.
func (s *seenSet) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}
