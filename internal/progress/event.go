// Package progress defines the structured events emitted by the crawl
// engine. Events are a side channel for observability and never part of
// the functional contract.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageFetchStart Stage = "FETCH_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageFetchRetry Stage = "FETCH_RETRY"
	StageSkip       Stage = "SKIP"
)

// Skip reasons attached to StageSkip events.
const (
	ReasonRobots    = "robots"
	ReasonDuplicate = "duplicate"
	ReasonBudget    = "budget"
)

// Event captures a single crawl milestone.
type Event struct {
	// RunID identifies the crawl run emitting the event.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage names the milestone.
	Stage Stage
	// URL is the page URL the event concerns, if any.
	URL string
	// Host scopes fetch events to a site label.
	Host string
	// Status carries the HTTP status for fetch completions.
	Status int
	// QueueDepth is the frontier length observed at emit time.
	QueueDepth int
	// Reason explains skip events.
	Reason string
	// Dur is the fetch or run duration where applicable.
	Dur time.Duration
	// Note carries low-volume debug context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageFetchRetry:
	case StageFetchStart, StageFetchDone:
		if e.URL == "" {
			return fmt.Errorf("%s requires a URL", e.Stage)
		}
	case StageSkip:
		if e.Reason == "" {
			return errors.New("skip requires a reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// StatusClass groups HTTP status codes for metric labels.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
