// Package crawler implements the site-graph crawl engine: the frontier,
// dedup state, concurrency gate, robots and domain policies, and the
// node/edge graph produced by a run.
package crawler

import (
	"time"
)

// StatusFetchFailed is the sentinel status recorded on a PageNode when the
// fetch failed after all retries, as opposed to an HTTP status returned by
// the server.
const StatusFetchFailed = 999

// EdgeKind classifies a discovered hyperlink by whether its target host is
// inside the crawl's allowed domain set.
type EdgeKind string

// Supported edge kinds.
const (
	EdgeInternal EdgeKind = "internal"
	EdgeExternal EdgeKind = "external"
)

// Termination describes why a run ended.
type Termination string

// Supported termination reasons.
const (
	TerminationBudget    Termination = "budget"
	TerminationQuiescent Termination = "quiescent"
	TerminationCanceled  Termination = "canceled"
)

// PageNode is the immutable record created exactly once per normalized URL.
// It is written by the worker that first claims the URL and never mutated
// afterward.
type PageNode struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	Title        string    `json:"title,omitempty"`
	H1           string    `json:"h1,omitempty"`
	Description  string    `json:"description,omitempty"`
	Canonical    string    `json:"canonical,omitempty"`
	NoIndex      bool      `json:"noindex,omitempty"`
	Screenshot   string    `json:"screenshot,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	RedirectedTo string    `json:"redirected_to,omitempty"`
	Error        string    `json:"error,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
}

// Edge records one hyperlink occurrence. Multiple edges to the same target
// are kept as-is; deduplication applies to nodes only.
type Edge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	TargetURL string   `json:"target_url"`
	Kind      EdgeKind `json:"kind"`
}

// RunMeta summarizes a completed run.
type RunMeta struct {
	RunID       string      `json:"run_id"`
	StartURL    string      `json:"start_url"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Pages       int         `json:"pages"`
	Edges       int         `json:"edges"`
	Termination Termination `json:"termination"`
}

// CrawlResult is the document handed to the result sink: run metadata, the
// (secret-redacted) configuration, and the full node/edge graph.
type CrawlResult struct {
	Meta   RunMeta        `json:"meta"`
	Config map[string]any `json:"config,omitempty"`
	Nodes  []PageNode     `json:"nodes"`
	Edges  []Edge         `json:"edges"`
}

// Snapshot is a point-in-time view of a running crawl, served by the
// status endpoint.
type Snapshot struct {
	RunID      string `json:"run_id"`
	Visited    int    `json:"visited"`
	QueueDepth int    `json:"queue_depth"`
	InFlight   int    `json:"in_flight"`
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
}
