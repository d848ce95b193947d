// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type EventID string
type SinkName string
type Stage string

func NewEventID() EventID {
	return EventID(uuid.New().String())
}
