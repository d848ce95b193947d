// Package publish fans finished pipeline records out to downstream sinks.
package publish

import (
	"context"
	"log/slog"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/user/framerelay/internal/metrics"
	"github.com/user/framerelay/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sink names used in records and metrics.
const (
	SinkIngest    types.SinkName = "ingest"
	SinkDashboard types.SinkName = "dashboard"
	SinkTelegram  types.SinkName = "telegram"
)

// Sink delivers a finished record to one downstream consumer.
type Sink interface {
	Name() types.SinkName
	// Wants reports whether the record should go to this sink at all.
	Wants(record *types.Record) bool
	Deliver(ctx context.Context, record *types.Record) error
}

// Registry fans finished records out to every registered sink that wants
// them.
type Registry struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewRegistry() *Registry {
	return &Registry{}
}

var _ types.Publisher = (*Registry)(nil)

// Register adds a sink to the fan-out set.
func (r *Registry) Register(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Publish delivers the record to each registered sink in turn. The returned
// map holds one entry per attempted sink, nil meaning delivered; sinks that
// declined the record are absent. One sink failing never stops the others.
func (r *Registry) Publish(ctx context.Context, record *types.Record) map[types.SinkName]error {
	r.mu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()

	results := make(map[types.SinkName]error, len(sinks))
	for _, sink := range sinks {
		if !sink.Wants(record) {
			continue
		}
		err := sink.Deliver(ctx, record)
		metrics.RecordPublish(string(sink.Name()), err)
		if err != nil {
			slog.Warn("sink delivery failed",
				"sink", sink.Name(),
				"event_id", record.Event.ID,
				"error", err)
		}
		results[sink.Name()] = err
	}
	return results
}
