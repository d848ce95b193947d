package pipeline

import (
	"time"

	"github.com/user/framerelay/internal/types"
)

// newRecord wraps a capture event in a fresh pipeline record at the
// received stage.
func newRecord(event types.CaptureEvent) *types.Record {
	now := event.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &types.Record{
		Event:       event,
		Stage:       types.StageReceived,
		Transitions: []types.Transition{{Stage: types.StageReceived, At: now}},
		StartedAt:   now,
	}
}

// advance moves the record to the given stage and timestamps the
// transition. Callers advance stages strictly in pipeline order.
func advance(record *types.Record, stage types.Stage) {
	record.Stage = stage
	record.Transitions = append(record.Transitions, types.Transition{Stage: stage, At: time.Now()})
	if stage == types.StagePublished {
		record.CompletedAt = time.Now()
	}
}

// fail freezes the record at the stage it had reached: kind distinguishes
// exhausted retries from aborts, err becomes the recorded failure text.
func fail(record *types.Record, kind string, err error) {
	now := time.Now()
	record.FailedStage = record.Stage
	record.Stage = types.StageFailed
	record.FailureKind = kind
	if err != nil {
		record.Error = err.Error()
	}
	record.Transitions = append(record.Transitions, types.Transition{Stage: types.StageFailed, At: now})
	record.CompletedAt = now
}
