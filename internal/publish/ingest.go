// internal/publish/ingest.go
package publish

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/config"
	"github.com/user/framerelay/internal/forward"
	"github.com/user/framerelay/internal/remote"
	"github.com/user/framerelay/internal/types"
)

// ingestPayload is the final structured result the ingest sink receives.
type ingestPayload struct {
	EventID         types.EventID          `json:"event_id"`
	Source          string                 `json:"source,omitempty"`
	ImagePath       string                 `json:"image_path,omitempty"`
	SidecarBasename string                 `json:"sidecar_basename,omitempty"`
	Caption         string                 `json:"caption"`
	Objects         []string               `json:"objects"`
	Detection       *types.DetectionResult `json:"detection,omitempty"`
	Pose            *types.Pose            `json:"pose,omitempty"`
	Artifact        string                 `json:"artifact,omitempty"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// IngestSink posts the full result JSON downstream, retrying transient
// failures under the configured hop policy.
type IngestSink struct {
	url    string
	policy forward.Policy
	client *http.Client
}

func NewIngestSink(hop config.Hop) *IngestSink {
	return &IngestSink{
		url:    hop.Endpoint,
		policy: hop.Policy(),
		client: remote.NewHTTPClient(),
	}
}

func (s *IngestSink) Name() types.SinkName { return SinkIngest }

func (s *IngestSink) Wants(*types.Record) bool { return true }

func (s *IngestSink) Deliver(ctx context.Context, record *types.Record) error {
	payload := buildIngestPayload(record)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ingest payload: %w", err)
	}

	outcome := forward.Do(ctx, "ingest", s.policy, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, forward.Terminal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if payload.SidecarBasename != "" {
			// Lets the receiver store the result under the same name the
			// capture rig used for its sidecar.
			req.Header.Set("X-Sidecar-Basename", payload.SidecarBasename)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		return struct{}{}, remote.CheckStatus(resp)
	})
	return outcome.Err
}

func buildIngestPayload(record *types.Record) ingestPayload {
	p := ingestPayload{
		EventID:     record.Event.ID,
		Source:      record.Event.Source,
		ImagePath:   record.Event.ImagePath,
		Caption:     record.Event.Caption,
		Objects:     record.Queries,
		Detection:   record.Detection,
		Pose:        record.Event.Pose,
		Artifact:    record.Artifact,
		CompletedAt: record.CompletedAt,
	}
	if record.Event.ImagePath != "" {
		p.SidecarBasename = filepath.Base(captures.SidecarPath(record.Event.ImagePath))
	}
	// Fan-out runs just before the record turns Published, so the completion
	// stamp may not be set yet.
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}
	return p
}
