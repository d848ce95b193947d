// Package state provides in-memory and filesystem-backed record storage.
package state

import "github.com/user/framerelay/internal/types"

// Compile-time interface compliance checks.
var _ types.HistoryStore = (*History)(nil)
var _ types.JournalStore = (*Journal)(nil)
