// internal/types/interfaces.go
package types

import (
	"context"
)

// Extractor turns a caption into a deduplicated list of detection queries.
type Extractor interface {
	ExtractObjects(ctx context.Context, caption string) ([]string, error)
}

// Detector runs object detection for one frame. The returned byte slice is
// the service-rendered annotated JPEG when in-service annotation was
// requested and the detector supplied one; nil otherwise.
type Detector interface {
	Detect(ctx context.Context, imagePath string, queries []string) (*DetectionResult, []byte, error)
}

// Annotator writes the annotated artifact for a frame and returns its path.
// When rendered is non-nil those bytes are written as-is instead of drawing
// locally.
type Annotator interface {
	WriteAnnotated(imagePath string, result *DetectionResult, rendered []byte) (string, error)
}

// Publisher fans the finished record out to downstream sinks. The returned
// map holds one entry per attempted sink; a nil value means delivered.
// Sinks that declined the record are absent.
type Publisher interface {
	Publish(ctx context.Context, record *Record) map[SinkName]error
}

// HistoryStore tracks recent pipeline records for the HTTP surface.
type HistoryStore interface {
	Put(record *Record)
	Get(id EventID) (*Record, bool)
	Recent(limit int) []*Record
	Latest() (*Record, bool)
}

// JournalStore persists completed records.
type JournalStore interface {
	Append(ctx context.Context, record *Record) error
	Tail(ctx context.Context, limit int) ([]*Record, error)
}
