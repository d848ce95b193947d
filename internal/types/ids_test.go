// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewEventID(t *testing.T) {
	id := NewEventID()
	if id == "" {
		t.Error("expected non-empty EventID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestEventIDsUnique(t *testing.T) {
	if NewEventID() == NewEventID() {
		t.Error("expected distinct IDs")
	}
}
