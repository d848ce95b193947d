// internal/remote/extract.go
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/user/framerelay/internal/forward"
)

// ExtractionClient calls the prompt extraction service, which turns a scene
// caption into object phrases worth detecting.
type ExtractionClient struct {
	endpoint string
	budget   *CaptionBudget
	client   *http.Client
}

// NewExtractionClient creates a client for the extraction service at
// endpoint. tokenBudget caps the caption length in tokens before the hop;
// 0 disables trimming.
func NewExtractionClient(endpoint string, tokenBudget int) (*ExtractionClient, error) {
	c := &ExtractionClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   NewHTTPClient(),
	}
	if tokenBudget > 0 {
		budget, err := NewCaptionBudget(tokenBudget)
		if err != nil {
			return nil, err
		}
		c.budget = budget
	}
	return c, nil
}

type extractRequest struct {
	Caption string `json:"caption"`
}

// Objects is a pointer so a reply without the field is distinguishable from
// an empty list: the former is a schema violation, the latter is a valid
// "nothing worth detecting".
type extractResponse struct {
	Objects *[]string `json:"objects"`
}

// ExtractObjects sends the caption and returns the cleaned object list.
// An empty caption short-circuits without touching the network.
func (c *ExtractionClient) ExtractObjects(ctx context.Context, caption string) ([]string, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return nil, nil
	}
	if c.budget != nil {
		caption = c.budget.Trim(caption)
	}

	body, err := json.Marshal(extractRequest{Caption: caption})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/prompts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return nil, err
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, forward.Terminal(fmt.Errorf("decode extract response: %w", err))
	}
	if parsed.Objects == nil {
		return nil, forward.Terminal(errors.New("extract response missing objects list"))
	}
	return Dedupe(*parsed.Objects), nil
}

// Dedupe strips empty and whitespace-only entries and removes duplicates,
// keeping first-occurrence order.
func Dedupe(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
