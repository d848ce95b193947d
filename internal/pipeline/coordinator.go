// Package pipeline orchestrates capture events through caption, object
// extraction, detection, annotation, and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/config"
	"github.com/user/framerelay/internal/forward"
	"github.com/user/framerelay/internal/metrics"
	"github.com/user/framerelay/internal/types"
)

// Coordinator drives capture events through the pipeline stages, recording
// progress in history and terminal outcomes in the journal.
type Coordinator struct {
	cfg       *config.Config
	extractor types.Extractor
	detector  types.Detector
	annotator types.Annotator
	publisher types.Publisher
	history   types.HistoryStore
	journal   types.JournalStore
	sidecars  *captures.Store

	Queue *Queue
}

// Options carries the coordinator's collaborators.
type Options struct {
	Extractor types.Extractor
	Detector  types.Detector
	Annotator types.Annotator
	Publisher types.Publisher
	History   types.HistoryStore
	Journal   types.JournalStore
	Sidecars  *captures.Store
}

// New creates a Coordinator with the concurrency bound from cfg.
func New(cfg *config.Config, opts Options) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		extractor: opts.Extractor,
		detector:  opts.Detector,
		annotator: opts.Annotator,
		publisher: opts.Publisher,
		history:   opts.History,
		journal:   opts.Journal,
		sidecars:  opts.Sidecars,
		Queue:     NewQueue(int64(cfg.MaxConcurrent)),
	}
	c.Queue.SetProcessor(c.run)
	return c
}

// Start initialises the coordinator's queue.
func (c *Coordinator) Start(ctx context.Context) {
	c.Queue.Start(ctx)
}

// Stop drains the queue and waits for in-flight events to finish.
func (c *Coordinator) Stop() {
	c.Queue.Stop()
}

// ResolveEvent turns an inbound wire event into a full capture event: trims
// the caption, resolves the newest capture on disk when no image path was
// given, and attaches any pose encoded in the filename.
func (c *Coordinator) ResolveEvent(inbound types.InboundEvent) (types.CaptureEvent, error) {
	caption := strings.TrimSpace(inbound.Caption)
	if caption == "" {
		return types.CaptureEvent{}, errors.New("empty caption")
	}

	imagePath := strings.TrimSpace(inbound.ImagePath)
	if imagePath == "" {
		latest, err := captures.LatestImage(c.cfg.CapturesRoot)
		if err != nil {
			return types.CaptureEvent{}, fmt.Errorf("resolve capture: %w", err)
		}
		imagePath = latest
	}

	return types.CaptureEvent{
		ID:         types.NewEventID(),
		ImagePath:  imagePath,
		Caption:    caption,
		Source:     inbound.Source,
		Pose:       captures.PoseFromName(imagePath),
		ReceivedAt: time.Now(),
	}, nil
}

// Submit queues an event for asynchronous processing.
func (c *Coordinator) Submit(event types.CaptureEvent) error {
	record := newRecord(event)
	c.history.Put(record)
	if err := c.Queue.Enqueue(record); err != nil {
		fail(record, types.FailureAborted, err)
		c.history.Put(record)
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		return err
	}
	return nil
}

// ProcessSync runs one event through the pipeline synchronously, bypassing
// the queue.
func (c *Coordinator) ProcessSync(ctx context.Context, event types.CaptureEvent) (*types.Record, error) {
	record := newRecord(event)
	c.history.Put(record)
	err := c.run(ctx, record)
	return record, err
}

// detectOutput bundles the detector's two return values through the
// forwarder.
type detectOutput struct {
	result   *types.DetectionResult
	rendered []byte
}

func (c *Coordinator) run(ctx context.Context, record *types.Record) error {
	slog.Info("processing event",
		"event_id", record.Event.ID,
		"image", record.Event.ImagePath,
		"caption", record.Event.Caption)

	caption := strings.TrimSpace(record.Event.Caption)
	if caption == "" {
		fail(record, types.FailureAborted, errors.New("empty caption"))
		return c.finish(ctx, record)
	}
	advance(record, types.StageCaptionReady)
	c.history.Put(record)

	started := time.Now()
	extracted := forward.Do(ctx, "extract", c.cfg.Extract.Policy(), func(ctx context.Context) ([]string, error) {
		return c.extractor.ExtractObjects(ctx, caption)
	})
	metrics.ObserveStage("extract", extracted.State.String(), extracted.Attempts, time.Since(started))
	if extracted.State != forward.Success {
		fail(record, failureKind(extracted.State), extracted.Err)
		return c.finish(ctx, record)
	}
	record.Queries = extracted.Value
	advance(record, types.StageObjectsReady)
	c.history.Put(record)

	// Detection runs even with zero queries; the detector decides what an
	// empty prompt list means.
	started = time.Now()
	detected := forward.Do(ctx, "detect", c.cfg.Detect.Policy(), func(ctx context.Context) (detectOutput, error) {
		result, rendered, err := c.detector.Detect(ctx, record.Event.ImagePath, record.Queries)
		return detectOutput{result: result, rendered: rendered}, err
	})
	metrics.ObserveStage("detect", detected.State.String(), detected.Attempts, time.Since(started))
	if detected.State != forward.Success {
		fail(record, failureKind(detected.State), detected.Err)
		return c.finish(ctx, record)
	}
	record.Detection = detected.Value.result
	advance(record, types.StageDetectionReady)
	c.history.Put(record)
	c.writeSidecar(record)

	// Annotation is local and single-attempt; a failure here is a resource
	// problem, not flakiness.
	started = time.Now()
	artifact, err := c.annotator.WriteAnnotated(record.Event.ImagePath, record.Detection, detected.Value.rendered)
	if err != nil {
		metrics.ObserveStage("annotate", "aborted", 1, time.Since(started))
		fail(record, types.FailureAborted, err)
		return c.finish(ctx, record)
	}
	metrics.ObserveStage("annotate", "success", 1, time.Since(started))
	record.Artifact = artifact
	advance(record, types.StageAnnotatedReady)
	c.history.Put(record)

	// Fan-out. Sink failures flag the record, they never fail it.
	results := c.publisher.Publish(ctx, record)
	record.Publish = make(map[types.SinkName]string, len(results))
	for name, sinkErr := range results {
		if sinkErr != nil {
			record.Publish[name] = sinkErr.Error()
			record.PublishFailed = true
		} else {
			record.Publish[name] = "ok"
		}
	}
	advance(record, types.StagePublished)
	return c.finish(ctx, record)
}

// finish records the terminal state everywhere it is visible.
func (c *Coordinator) finish(ctx context.Context, record *types.Record) error {
	c.history.Put(record)

	if record.Stage == types.StageFailed {
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		slog.Warn("event failed",
			"event_id", record.Event.ID,
			"failed_stage", record.FailedStage,
			"failure_kind", record.FailureKind,
			"error", record.Error)
	} else {
		metrics.EventsTotal.WithLabelValues("published").Inc()
		slog.Info("event published",
			"event_id", record.Event.ID,
			"artifact", record.Artifact,
			"detections", detectionCount(record),
			"publish_failed", record.PublishFailed)
	}

	if err := c.journal.Append(ctx, record); err != nil {
		return fmt.Errorf("journal event %s: %w", record.Event.ID, err)
	}
	return nil
}

// writeSidecar merges the detection outcome into the frame's sidecar so
// captures scans can tell the frame has been processed.
func (c *Coordinator) writeSidecar(record *types.Record) {
	if c.sidecars == nil || record.Event.ImagePath == "" {
		return
	}
	update := map[string]any{
		"vlm_caption": record.Event.Caption,
		"detection": map[string]any{
			"ts":       time.Now().Unix(),
			"event_id": record.Event.ID,
			"queries":  record.Queries,
			"result":   record.Detection,
		},
	}
	if record.Event.Pose != nil {
		update["pose"] = record.Event.Pose
	}
	if err := c.sidecars.Merge(record.Event.ImagePath, update); err != nil {
		slog.Warn("sidecar update failed", "image", record.Event.ImagePath, "error", err)
	}
}

func failureKind(state forward.State) string {
	if state == forward.Exhausted {
		return types.FailureExhausted
	}
	return types.FailureAborted
}

func detectionCount(record *types.Record) int {
	if record.Detection == nil {
		return 0
	}
	return len(record.Detection.Detections)
}
