// internal/types/models.go
package types

import (
	"time"
)

// CaptureEvent is the unit of work: one captured frame plus the caption an
// upstream captioner produced for it.
type CaptureEvent struct {
	ID         EventID   `json:"id"`
	ImagePath  string    `json:"image_path"`
	Caption    string    `json:"caption"`
	Source     string    `json:"source,omitempty"`
	Pose       *Pose     `json:"pose,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Pose is the gantry position encoded in capture filenames, converted from
// millimeters/microradians to meters/radians.
type Pose struct {
	X   float64 `json:"x_m"`
	Y   float64 `json:"y_m"`
	Z   float64 `json:"z_m"`
	Yaw float64 `json:"yaw_rad"`
}

// Detection is one labeled box from the detector. BBox is [x1, y1, x2, y2];
// coordinates may be normalized to [0..1] or absolute pixels, so consumers
// scale against Image size when values look fractional.
type Detection struct {
	Label string     `json:"label"`
	BBox  [4]float64 `json:"bbox"`
	Score float64    `json:"score"`
}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectionResult is the detector's reply for one frame.
type DetectionResult struct {
	Image      ImageSize   `json:"image"`
	Prompts    []string    `json:"prompts"`
	Detections []Detection `json:"detections"`
	LatencySec float64     `json:"latency_sec"`
}

// Pipeline stages in order, plus the terminal failure state. A record only
// ever moves forward through these, or sideways into StageFailed.
const (
	StageReceived       Stage = "received"
	StageCaptionReady   Stage = "caption_ready"
	StageObjectsReady   Stage = "objects_ready"
	StageDetectionReady Stage = "detection_ready"
	StageAnnotatedReady Stage = "annotated_ready"
	StagePublished      Stage = "published"
	StageFailed         Stage = "failed"
)

// FailureKind distinguishes how a stage died.
const (
	FailureExhausted = "exhausted_retries"
	FailureAborted   = "aborted"
)

// Transition is one recorded state change.
type Transition struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// Record tracks a single capture event through the pipeline. Fields for a
// stage are only populated once that stage completed; a record that failed
// at extraction carries no detection data.
type Record struct {
	Event       CaptureEvent     `json:"event"`
	Stage       Stage            `json:"stage"`
	Transitions []Transition     `json:"transitions"`
	Queries     []string         `json:"queries,omitempty"`
	Detection   *DetectionResult `json:"detection,omitempty"`
	Artifact    string           `json:"artifact,omitempty"`

	// Publish maps sink name to "ok" or the error string. PublishFailed is
	// set when any sink failed; the record still reaches StagePublished.
	Publish       map[SinkName]string `json:"publish,omitempty"`
	PublishFailed bool                `json:"publish_failed,omitempty"`

	FailedStage Stage  `json:"failed_stage,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
	Error       string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// InboundEvent is the wire shape accepted by POST /events. ImagePath may be
// empty, in which case the relay resolves the newest capture on disk.
type InboundEvent struct {
	ImagePath string `json:"image_path,omitempty"`
	Caption   string `json:"caption"`
	Source    string `json:"source,omitempty"`
}

// Clone returns a deep copy safe to hand to readers while the pipeline
// keeps mutating the original.
func (r *Record) Clone() *Record {
	out := *r
	out.Transitions = append([]Transition(nil), r.Transitions...)
	out.Queries = append([]string(nil), r.Queries...)
	if r.Detection != nil {
		det := *r.Detection
		det.Prompts = append([]string(nil), r.Detection.Prompts...)
		det.Detections = append([]Detection(nil), r.Detection.Detections...)
		out.Detection = &det
	}
	if r.Publish != nil {
		out.Publish = make(map[SinkName]string, len(r.Publish))
		for k, v := range r.Publish {
			out.Publish[k] = v
		}
	}
	return &out
}

// Terminal reports whether the record has reached an end state.
func (r *Record) Terminal() bool {
	return r.Stage == StagePublished || r.Stage == StageFailed
}
