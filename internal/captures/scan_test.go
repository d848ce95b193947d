package captures

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAt(t *testing.T, path string, data string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestLatestImage(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)

	writeFileAt(t, filepath.Join(root, "run1", "frame001.jpg"), "img", base)
	writeFileAt(t, filepath.Join(root, "run1", "frame002.jpg"), "img", base.Add(10*time.Minute))
	// Annotation artifacts never win, however fresh.
	writeFileAt(t, filepath.Join(root, "run1", "frame001_ann.jpg"), "img", base.Add(time.Hour))
	writeFileAt(t, filepath.Join(root, "run1_ann", "frame003.jpg"), "img", base.Add(time.Hour))
	// Non-image files are ignored.
	writeFileAt(t, filepath.Join(root, "run1", "frame002.json"), "{}", base.Add(time.Hour))

	latest, err := LatestImage(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(latest) != "frame002.jpg" {
		t.Errorf("expected frame002.jpg, got %s", latest)
	}
}

func TestLatestImageEmptyRoot(t *testing.T) {
	_, err := LatestImage(t.TempDir())
	if !errors.Is(err, ErrNoCaptures) {
		t.Errorf("expected ErrNoCaptures, got %v", err)
	}
}

func TestLatestImageMissingRoot(t *testing.T) {
	_, err := LatestImage(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrNoCaptures) {
		t.Errorf("expected ErrNoCaptures, got %v", err)
	}
}

func TestSidecarPath(t *testing.T) {
	cases := map[string]string{
		"/captures/run1/frame001.jpg":  "/captures/run1/frame001.json",
		"/captures/run1/frame001.jpeg": "/captures/run1/frame001.json",
		"/captures/run1/frame001.png":  "/captures/run1/frame001.json",
	}
	for in, want := range cases {
		if got := SidecarPath(in); got != want {
			t.Errorf("SidecarPath(%s): expected %s, got %s", in, want, got)
		}
	}
}

func TestPendingCaptioned(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)

	// Captioned, unprocessed: belongs in the result.
	writeFileAt(t, filepath.Join(root, "run1", "b.jpg"), "img", base.Add(2*time.Minute))
	writeFileAt(t, filepath.Join(root, "run1", "b.json"), `{"vlm_caption": "a mug"}`, base.Add(2*time.Minute))

	// Older captioned frame comes first.
	writeFileAt(t, filepath.Join(root, "run1", "a.jpg"), "img", base)
	writeFileAt(t, filepath.Join(root, "run1", "a.json"), `{"vlm_caption": "a chair"}`, base)

	// Already processed: skipped.
	writeFileAt(t, filepath.Join(root, "run1", "c.jpg"), "img", base.Add(3*time.Minute))
	writeFileAt(t, filepath.Join(root, "run1", "c.json"), `{"vlm_caption": "a desk", "detection": {"ts": 1}}`, base.Add(3*time.Minute))

	// No sidecar: skipped.
	writeFileAt(t, filepath.Join(root, "run1", "d.jpg"), "img", base.Add(4*time.Minute))

	// Empty caption: skipped.
	writeFileAt(t, filepath.Join(root, "run1", "e.jpg"), "img", base.Add(5*time.Minute))
	writeFileAt(t, filepath.Join(root, "run1", "e.json"), `{"vlm_caption": "  "}`, base.Add(5*time.Minute))

	pending, err := PendingCaptioned(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending frames, got %d: %+v", len(pending), pending)
	}
	if filepath.Base(pending[0].ImagePath) != "a.jpg" || pending[0].Caption != "a chair" {
		t.Errorf("unexpected first pending %+v", pending[0])
	}
	if filepath.Base(pending[1].ImagePath) != "b.jpg" || pending[1].Caption != "a mug" {
		t.Errorf("unexpected second pending %+v", pending[1])
	}
}

func TestPendingCaptionedLimit(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c"} {
		writeFileAt(t, filepath.Join(root, name+".jpg"), "img", base.Add(time.Duration(i)*time.Minute))
		writeFileAt(t, filepath.Join(root, name+".json"), `{"vlm_caption": "something"}`, base)
	}

	pending, err := PendingCaptioned(root, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("expected limit of 2, got %d", len(pending))
	}
}

func TestPruneStaleTemp(t *testing.T) {
	root := t.TempDir()

	stale := filepath.Join(root, "run1", "frame001.json.tmp")
	writeFileAt(t, stale, "partial", time.Now().Add(-2*time.Hour))
	fresh := filepath.Join(root, "run1", "frame002.json.tmp")
	writeFileAt(t, fresh, "partial", time.Now())
	keep := filepath.Join(root, "run1", "frame001.json")
	writeFileAt(t, keep, "{}", time.Now().Add(-2*time.Hour))

	removed, err := PruneStaleTemp(root, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file should survive")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("sidecar should survive")
	}
}
