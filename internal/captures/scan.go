// Package captures resolves frames and sidecar metadata under the captures
// root that the capture rigs write into.
package captures

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNoCaptures is returned when the captures root holds no usable frame.
var ErrNoCaptures = errors.New("no captures found")

// imageExts are the formats the rigs write.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

var annFileRe = regexp.MustCompile(`(?i)_ann\.(jpg|jpeg|png)$`)

func isAnnDir(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "_ann")
}

// walkImages visits every capture frame under root, skipping annotation
// artifacts and _ann output folders. Unreadable entries are skipped.
func walkImages(root string, visit func(path string, info fs.FileInfo)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && isAnnDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if annFileRe.MatchString(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(path, info)
		return nil
	})
}

// LatestImage returns the most recently modified frame under root.
func LatestImage(root string) (string, error) {
	var latest string
	var latestMod time.Time

	err := walkImages(root, func(path string, info fs.FileInfo) {
		if info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
			latest = path
		}
	})
	if err != nil {
		return "", fmt.Errorf("scan captures root: %w", err)
	}
	if latest == "" {
		return "", ErrNoCaptures
	}
	return latest, nil
}

// SidecarPath returns the metadata sidecar for an image: the same path with
// a .json extension.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}

// Pending is a captioned frame the pipeline has not processed yet.
type Pending struct {
	ImagePath string
	Caption   string
}

// PendingCaptioned returns frames whose sidecar carries a caption but no
// detection section yet, oldest first, capped at limit.
func PendingCaptioned(root string, limit int) ([]Pending, error) {
	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate

	err := walkImages(root, func(path string, info fs.FileInfo) {
		found = append(found, candidate{path: path, mod: info.ModTime()})
	})
	if err != nil {
		return nil, fmt.Errorf("scan captures root: %w", err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })

	var pending []Pending
	for _, c := range found {
		if limit > 0 && len(pending) >= limit {
			break
		}
		data, err := os.ReadFile(SidecarPath(c.path))
		if err != nil {
			continue
		}
		var doc struct {
			Caption   string `json:"vlm_caption"`
			Detection any    `json:"detection"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		if strings.TrimSpace(doc.Caption) == "" || doc.Detection != nil {
			continue
		}
		pending = append(pending, Pending{ImagePath: c.path, Caption: doc.Caption})
	}
	return pending, nil
}

// PruneStaleTemp removes .tmp leftovers under root older than maxAge, the
// debris of writers that died mid-rename. Returns how many were removed.
func PruneStaleTemp(root string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune captures root: %w", err)
	}
	return removed, nil
}
