// internal/publish/dashboard.go
package publish

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/user/framerelay/internal/config"
	"github.com/user/framerelay/internal/remote"
	"github.com/user/framerelay/internal/types"
)

// DashboardSink nudges the viewing dashboard that a frame finished. Single
// attempt: the dashboard polls the relay anyway, a missed nudge only delays
// its refresh.
type DashboardSink struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewDashboardSink(cfg config.SinkConfig) *DashboardSink {
	return &DashboardSink{
		url:     cfg.URL,
		timeout: time.Duration(cfg.TimeoutSec * float64(time.Second)),
		client:  remote.NewHTTPClient(),
	}
}

func (s *DashboardSink) Name() types.SinkName { return SinkDashboard }

func (s *DashboardSink) Wants(*types.Record) bool { return true }

func (s *DashboardSink) Deliver(ctx context.Context, record *types.Record) error {
	payload := struct {
		EventID  types.EventID `json:"event_id"`
		Caption  string        `json:"caption"`
		Artifact string        `json:"artifact,omitempty"`
	}{record.Event.ID, record.Event.Caption, record.Artifact}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dashboard payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dashboard request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return remote.CheckStatus(resp)
}
