package captures

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreMergeCreates(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame001.jpg")
	store := NewStore()

	if err := store.Merge(img, map[string]any{"vlm_caption": "a red mug"}); err != nil {
		t.Fatal(err)
	}

	data, err := store.Load(img)
	if err != nil {
		t.Fatal(err)
	}
	if data["vlm_caption"] != "a red mug" {
		t.Errorf("unexpected sidecar contents: %+v", data)
	}
}

func TestStoreMergePreservesKeys(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame001.jpg")
	store := NewStore()

	if err := store.Merge(img, map[string]any{"vlm_caption": "a red mug", "ts": 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := store.Merge(img, map[string]any{"detection": map[string]any{"latency_sec": 0.5}}); err != nil {
		t.Fatal(err)
	}

	data, err := store.Load(img)
	if err != nil {
		t.Fatal(err)
	}
	if data["vlm_caption"] != "a red mug" {
		t.Error("merge dropped existing caption")
	}
	if data["ts"] != 1.0 {
		t.Error("merge dropped existing ts")
	}
	if _, ok := data["detection"].(map[string]any); !ok {
		t.Errorf("merge did not add detection: %+v", data)
	}
}

func TestStoreMergeLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame001.jpg")
	store := NewStore()

	if err := store.Merge(img, map[string]any{"vlm_caption": "x"}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStoreMergeReplacesCorrupt(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame001.jpg")
	side := SidecarPath(img)
	if err := os.WriteFile(side, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	if err := store.Merge(img, map[string]any{"vlm_caption": "recovered"}); err != nil {
		t.Fatal(err)
	}

	data, err := store.Load(img)
	if err != nil {
		t.Fatal(err)
	}
	if data["vlm_caption"] != "recovered" {
		t.Errorf("expected fresh sidecar after corrupt file, got %+v", data)
	}
}

func TestStoreCaption(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame001.jpg")
	store := NewStore()

	got, err := store.Caption(img)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("expected empty caption for missing sidecar, got %q", got)
	}

	if err := store.Merge(img, map[string]any{"vlm_caption": "a chair"}); err != nil {
		t.Fatal(err)
	}
	got, err = store.Caption(img)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a chair" {
		t.Errorf("expected caption, got %q", got)
	}
}
