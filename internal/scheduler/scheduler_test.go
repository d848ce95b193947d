// internal/scheduler/scheduler_test.go
package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/types"
)

// writeFrame creates an image file plus sidecar under root. An empty sidecar
// string means no sidecar file at all.
func writeFrame(t *testing.T, root, name, sidecar string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	if sidecar != "" {
		if err := os.WriteFile(captures.SidecarPath(path), []byte(sidecar), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
	return path
}

// collector records submitted capture events.
type collector struct {
	mu     sync.Mutex
	events []types.CaptureEvent
	fail   error
}

func (c *collector) submit(ev types.CaptureEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		err := c.fail
		c.fail = nil
		return err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) all() []types.CaptureEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.CaptureEvent, len(c.events))
	copy(out, c.events)
	return out
}

func TestSweepEnqueuesPending(t *testing.T) {
	root := t.TempDir()
	writeFrame(t, root, "frame001.jpg", `{"vlm_caption":"a red chair"}`, 3*time.Minute)
	writeFrame(t, root, "frame002.jpg", `{"vlm_caption":"an open door"}`, 2*time.Minute)
	writeFrame(t, root, "frame003.jpg", `{"vlm_caption":"done","detection":{"event_id":"evt_old"}}`, time.Minute)

	var c collector
	s := New(root, "@hourly", c.submit)
	s.Sweep()

	events := c.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 enqueued events, got %d", len(events))
	}
	if events[0].Caption != "a red chair" || events[1].Caption != "an open door" {
		t.Errorf("unexpected captions: %q, %q", events[0].Caption, events[1].Caption)
	}
	for _, ev := range events {
		if ev.ID == "" {
			t.Error("event ID not assigned")
		}
		if ev.Source != "sweep" {
			t.Errorf("expected source sweep, got %q", ev.Source)
		}
		if ev.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not stamped")
		}
	}
}

func TestSweepSkipsProcessed(t *testing.T) {
	root := t.TempDir()
	writeFrame(t, root, "frame001.jpg", `{"vlm_caption":"done","detection":{"event_id":"evt_old"}}`, time.Minute)
	writeFrame(t, root, "frame002.jpg", "", time.Minute)

	var c collector
	s := New(root, "@hourly", c.submit)
	s.Sweep()

	if n := len(c.all()); n != 0 {
		t.Errorf("expected 0 enqueued events, got %d", n)
	}
}

func TestSweepDoesNotResubmit(t *testing.T) {
	root := t.TempDir()
	writeFrame(t, root, "frame001.jpg", `{"vlm_caption":"a red chair"}`, time.Minute)

	var c collector
	s := New(root, "@hourly", c.submit)
	s.Sweep()
	// Sidecar still lacks a detection section; a second pass must not
	// enqueue the same frame again.
	s.Sweep()

	if n := len(c.all()); n != 1 {
		t.Errorf("expected 1 enqueued event across two sweeps, got %d", n)
	}
}

func TestSweepQueueFullRetries(t *testing.T) {
	root := t.TempDir()
	writeFrame(t, root, "frame001.jpg", `{"vlm_caption":"a red chair"}`, time.Minute)

	c := collector{fail: errors.New("queue full")}
	s := New(root, "@hourly", c.submit)

	s.Sweep()
	if n := len(c.all()); n != 0 {
		t.Fatalf("expected 0 events after rejected sweep, got %d", n)
	}

	s.Sweep()
	if n := len(c.all()); n != 1 {
		t.Errorf("expected frame resubmitted after rejection, got %d events", n)
	}
}

func TestSweepBatchLimit(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < maxBatch+4; i++ {
		writeFrame(t, root, fmt.Sprintf("frame%03d.jpg", i), `{"vlm_caption":"pending"}`, time.Minute)
	}

	var c collector
	s := New(root, "@hourly", c.submit)
	s.Sweep()

	if n := len(c.all()); n != maxBatch {
		t.Errorf("expected sweep capped at %d events, got %d", maxBatch, n)
	}
}

func TestSweepPrunesTemp(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "frame001.json.tmp")
	if err := os.WriteFile(stale, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(root, "frame002.json.tmp")
	if err := os.WriteFile(fresh, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	var c collector
	s := New(root, "@hourly", c.submit)
	s.Sweep()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file not pruned")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file should survive pruning")
	}
}

func TestSweeperFires(t *testing.T) {
	root := t.TempDir()
	writeFrame(t, root, "frame001.jpg", `{"vlm_caption":"a red chair"}`, time.Minute)

	var fires atomic.Int32
	s := New(root, "* * * * * *", func(ev types.CaptureEvent) error {
		fires.Add(1)
		return nil
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("sweep did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSweeperBadSchedule(t *testing.T) {
	s := New(t.TempDir(), "not a schedule", func(types.CaptureEvent) error { return nil })
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}
