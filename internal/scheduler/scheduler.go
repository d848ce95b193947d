// internal/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/types"
)

const (
	// maxBatch caps how many frames one sweep pass enqueues.
	maxBatch = 16
	// resubmitAfter is how long a sweep-enqueued frame is left alone before
	// it may be enqueued again.
	resubmitAfter = 10 * time.Minute
	// staleTempAge is how old a .tmp leftover must be before pruning.
	staleTempAge = time.Hour
)

// Sweeper periodically scans the captures root for captioned frames the
// pipeline has not processed yet and enqueues them, and prunes stale temp
// files left behind by crashed writers.
type Sweeper struct {
	root     string
	schedule string
	submit   func(types.CaptureEvent) error
	cron     *cron.Cron

	mu        sync.Mutex
	submitted map[string]time.Time
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Sweeper scanning root on the given cron schedule. Frames
// found pending are handed to submit.
func New(root, schedule string, submit func(types.CaptureEvent) error) *Sweeper {
	return &Sweeper{
		root:      root,
		schedule:  schedule,
		submit:    submit,
		cron:      cron.New(cron.WithParser(cronParser)),
		submitted: make(map[string]time.Time),
	}
}

// Start registers the sweep entry and starts the cron ticker.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("sweep scheduled", "root", s.root, "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one pass: enqueue pending captioned frames, then prune stale
// temp files. Safe to call directly.
func (s *Sweeper) Sweep() {
	pending, err := captures.PendingCaptioned(s.root, 0)
	if err != nil {
		slog.Error("sweep scan failed", "root", s.root, "error", err)
		return
	}

	enqueued := 0
	for _, p := range pending {
		if enqueued >= maxBatch {
			break
		}
		if !s.markSubmitted(p.ImagePath) {
			continue
		}
		event := types.CaptureEvent{
			ID:         types.NewEventID(),
			ImagePath:  p.ImagePath,
			Caption:    p.Caption,
			Source:     "sweep",
			Pose:       captures.PoseFromName(p.ImagePath),
			ReceivedAt: time.Now(),
		}
		if err := s.submit(event); err != nil {
			// Queue full; unmark so the next pass retries this frame.
			s.unmark(p.ImagePath)
			slog.Warn("sweep enqueue failed", "image", p.ImagePath, "error", err)
			break
		}
		enqueued++
		slog.Info("sweep enqueued frame", "event_id", event.ID, "image", p.ImagePath)
	}

	removed, err := captures.PruneStaleTemp(s.root, staleTempAge)
	if err != nil {
		slog.Warn("temp prune failed", "root", s.root, "error", err)
	} else if removed > 0 {
		slog.Info("pruned stale temp files", "root", s.root, "count", removed)
	}
}

// markSubmitted records a frame as handed off, refusing frames submitted
// recently. Keeps a slow pipeline from seeing the same frame twice while
// its sidecar still lacks a detection section.
func (s *Sweeper) markSubmitted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if at, ok := s.submitted[path]; ok && now.Sub(at) < resubmitAfter {
		return false
	}
	for p, at := range s.submitted {
		if now.Sub(at) >= resubmitAfter {
			delete(s.submitted, p)
		}
	}
	s.submitted[path] = now
	return true
}

func (s *Sweeper) unmark(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submitted, path)
}
