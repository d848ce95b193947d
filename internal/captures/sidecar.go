// internal/captures/sidecar.go
package captures

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Store reads and merges per-image JSON sidecars. The capture rigs and the
// relay both write these files, so every update is read-merge-replace with a
// temp file rename; readers never see a half-written sidecar.
type Store struct {
	mu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// load returns the sidecar document, starting fresh when the file is
// missing or unparseable. Caller must hold the lock for read-modify-write.
func (s *Store) load(imagePath string) (map[string]any, error) {
	path := SidecarPath(imagePath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("sidecar unparseable, starting over", "path", path, "error", err)
		return map[string]any{}, nil
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Load returns the sidecar document for an image, or an empty document when
// none exists yet.
func (s *Store) Load(imagePath string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(imagePath)
}

// Merge updates top-level keys in the sidecar and writes it back atomically.
func (s *Store) Merge(imagePath string, update map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(imagePath)
	if err != nil {
		return err
	}
	for k, v := range update {
		doc[k] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}

	path := SidecarPath(imagePath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// Caption returns the rig-written caption from the sidecar, if any.
func (s *Store) Caption(imagePath string) (string, error) {
	doc, err := s.Load(imagePath)
	if err != nil {
		return "", err
	}
	caption, _ := doc["vlm_caption"].(string)
	return caption, nil
}
