// Package stream implements the Progress Stream: a 500ms poll loop over a
// Task's snapshot, weighted-stage progress calculation, coalesced event
// emission, and SSE framing for HTTP handlers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eternnoir/mediascribe/pkg/task"
)

const pollInterval = 500 * time.Millisecond

// stageWeights assigns each active stage a share of overall progress.
// Weights sum to 1.0 and mirror the relative cost of each stage.
var stageWeights = map[task.Status]float64{
	task.StatusDownloading:  0.20,
	task.StatusSplitting:    0.10,
	task.StatusTranscribing: 0.60,
	task.StatusMerging:      0.10,
}

var stageOrder = []task.Status{
	task.StatusDownloading,
	task.StatusSplitting,
	task.StatusTranscribing,
	task.StatusMerging,
}

// Event is one progress update emitted to a subscriber, matching the
// payload contract: {id, status, progress, error?, created_at, updated_at,
// current_stage}.
type Event struct {
	TaskID          string    `json:"id"`
	Status          string    `json:"status"`
	OverallProgress float64   `json:"progress"`
	StageProgress   float64   `json:"stage_progress"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CurrentStage    string    `json:"current_stage"`
}

// overallProgress converts a task's current status plus its in-stage
// Stats.Progress (0-100) into a single 0-100 figure: completed stages
// contribute their full weight and the active stage contributes its
// proportional share. Pending reports 0, Completed reports 100, and
// Failed/Cancelled report the raw, unweighted Stats.Progress.
func overallProgress(snap task.Task) float64 {
	switch snap.Status {
	case task.StatusCompleted:
		return 100
	case task.StatusPending:
		return 0
	case task.StatusFailed, task.StatusCancelled:
		return snap.Stats.Progress
	}

	var completedWeight float64
	for _, s := range stageOrder {
		if s == snap.Status {
			share := stageWeights[s] * (snap.Stats.Progress / 100)
			return clamp((completedWeight+share)*100, 0, 100)
		}
		completedWeight += stageWeights[s]
	}

	return clamp(snap.Stats.Progress, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// coalesce reports whether next is worth emitting given the last emitted
// event: a status change, a >=0.1 overall-progress delta, or a terminal
// state always qualifies; otherwise the update is suppressed.
func coalesce(last *Event, next Event) bool {
	if last == nil {
		return true
	}
	if last.Status != next.Status {
		return true
	}
	if next.OverallProgress-last.OverallProgress >= 0.1 {
		return true
	}
	return isTerminal(task.Status(next.Status))
}

func isTerminal(s task.Status) bool {
	switch s {
	case task.StatusCompleted, task.StatusFailed, task.StatusCancelled:
		return true
	default:
		return false
	}
}

func toEvent(snap task.Task) Event {
	ev := Event{
		TaskID:          snap.ID,
		Status:          string(snap.Status),
		OverallProgress: overallProgress(snap),
		StageProgress:   snap.Stats.Progress,
		CreatedAt:       snap.CreatedAt,
		UpdatedAt:       snap.UpdatedAt,
		CurrentStage:    string(snap.Status),
	}
	if snap.Status == task.StatusFailed {
		ev.Error = snap.LatestError()
	}
	return ev
}

// Watch polls t every 500ms and sends a coalesced Event to out each time
// overall progress or status meaningfully changes. Watch returns when the
// task reaches a terminal state (after emitting that final event) or when
// ctx is cancelled.
func Watch(ctx context.Context, t *task.Task, out chan<- Event) {
	defer close(out)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last *Event

	emit := func() bool {
		snap := t.Snapshot()
		ev := toEvent(snap)

		if !coalesce(last, ev) {
			return isTerminal(snap.Status)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return true
		}
		last = &ev
		return isTerminal(snap.Status)
	}

	if emit() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if emit() {
				return
			}
		}
	}
}

// WriteSSE frames ev as a single Server-Sent Events "data:" message.
func WriteSSE(w interface{ Write([]byte) (int, error) }, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload)))
	return err
}
