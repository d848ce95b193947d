// internal/remote/detect.go
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/framerelay/internal/forward"
	"github.com/user/framerelay/internal/types"
)

// DetectionClient calls the object detector with a frame and the extracted
// queries over multipart HTTP.
type DetectionClient struct {
	endpoint string
	annotate bool
	client   *http.Client
}

// NewDetectionClient creates a client for the detector at endpoint. When
// annotate is true the detector is asked to render the annotated frame
// itself and the bytes are returned alongside the result.
func NewDetectionClient(endpoint string, annotate bool) *DetectionClient {
	return &DetectionClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		annotate: annotate,
		client:   NewHTTPClient(),
	}
}

type detectionWire struct {
	Label string    `json:"label"`
	BBox  []float64 `json:"bbox"`
	Score float64   `json:"score"`
}

type detectResponse struct {
	Image        *types.ImageSize `json:"image"`
	Prompts      []string         `json:"prompts"`
	Detections   *[]detectionWire `json:"detections"`
	LatencySec   float64          `json:"latency_sec"`
	AnnotatedB64 string           `json:"annotated_image_b64"`
}

// Detect posts the image and queries to the detector. An empty query list
// still makes the trip; what that means is the detector's call. Zero
// detections is a valid result.
func (c *DetectionClient) Detect(ctx context.Context, imagePath string, queries []string) (*types.DetectionResult, []byte, error) {
	if queries == nil {
		queries = []string{}
	}
	promptsJSON, err := json.Marshal(queries)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal queries: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, nil, fmt.Errorf("create image part: %w", err)
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, forward.Terminal(fmt.Errorf("open image: %w", err))
	}
	if _, err := io.Copy(part, f); err != nil {
		f.Close()
		return nil, nil, forward.Terminal(fmt.Errorf("read image: %w", err))
	}
	f.Close()

	if err := writer.WriteField("prompts", string(promptsJSON)); err != nil {
		return nil, nil, fmt.Errorf("write prompts field: %w", err)
	}
	annotate := "0"
	if c.annotate {
		annotate = "1"
	}
	if err := writer.WriteField("annotate", annotate); err != nil {
		return nil, nil, fmt.Errorf("write annotate field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/infer", &buf)
	if err != nil {
		return nil, nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return nil, nil, err
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, forward.Terminal(fmt.Errorf("decode detect response: %w", err))
	}
	if parsed.Detections == nil {
		return nil, nil, forward.Terminal(errors.New("detect response missing detections list"))
	}
	if parsed.Image == nil {
		return nil, nil, forward.Terminal(errors.New("detect response missing image dimensions"))
	}

	result := &types.DetectionResult{
		Image:      *parsed.Image,
		Prompts:    parsed.Prompts,
		Detections: make([]types.Detection, 0, len(*parsed.Detections)),
		LatencySec: parsed.LatencySec,
	}
	for i, d := range *parsed.Detections {
		if len(d.BBox) != 4 {
			return nil, nil, forward.Terminal(fmt.Errorf("detection %d: bbox has %d coordinates", i, len(d.BBox)))
		}
		result.Detections = append(result.Detections, types.Detection{
			Label: d.Label,
			BBox:  [4]float64{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
			Score: d.Score,
		})
	}

	// A broken annotated payload is not worth failing the hop over; the
	// local writer takes over as if the service had omitted it.
	var rendered []byte
	if c.annotate && parsed.AnnotatedB64 != "" {
		rendered, err = base64.StdEncoding.DecodeString(parsed.AnnotatedB64)
		if err != nil {
			slog.Warn("discarding undecodable annotated image", "image", imagePath, "error", err)
			rendered = nil
		}
	}
	return result, rendered, nil
}
