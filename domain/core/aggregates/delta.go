package aggregates

import (
	"time"

	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Delta enumerates the keys a transition changed and their new records. A nil record
// means the key was deleted. A Delta is the unit the sync engine persists.
type Delta struct {
	ThoughtIndexUpdates map[valueobjects.Key]*entities.Lexeme
	ContextIndexUpdates map[valueobjects.Key]*entities.ContextEntry

	// Timestamp is the time of the transition. Deletions carry no record, so remote
	// tombstones are stamped with it.
	Timestamp time.Time
}

// NewDelta creates an empty delta
func NewDelta() Delta {
	return Delta{
		ThoughtIndexUpdates: make(map[valueobjects.Key]*entities.Lexeme),
		ContextIndexUpdates: make(map[valueobjects.Key]*entities.ContextEntry),
	}
}

// IsEmpty reports whether the delta changes nothing
func (d Delta) IsEmpty() bool {
	return len(d.ThoughtIndexUpdates) == 0 && len(d.ContextIndexUpdates) == 0
}

// Len returns the number of changed keys
func (d Delta) Len() int {
	return len(d.ThoughtIndexUpdates) + len(d.ContextIndexUpdates)
}

// Merge returns a delta holding d overlaid by later. Records in later win.
func (d Delta) Merge(later Delta) Delta {
	out := NewDelta()
	for key, lexeme := range d.ThoughtIndexUpdates {
		out.ThoughtIndexUpdates[key] = lexeme
	}
	for key, entry := range d.ContextIndexUpdates {
		out.ContextIndexUpdates[key] = entry
	}
	for key, lexeme := range later.ThoughtIndexUpdates {
		out.ThoughtIndexUpdates[key] = lexeme
	}
	for key, entry := range later.ContextIndexUpdates {
		out.ContextIndexUpdates[key] = entry
	}
	out.Timestamp = d.Timestamp
	if later.Timestamp.After(out.Timestamp) {
		out.Timestamp = later.Timestamp
	}
	return out
}
