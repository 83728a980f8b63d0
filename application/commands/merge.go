package commands

import (
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
)

// mergeRemote applies every record of a snapshot that is strictly newer than the local one.
// Remote tombstones delete local records.
func (r *Reducer) mergeRemote(g *aggregates.ThoughtGraph, c MergeRemote, now time.Time) Result {
	tx := g.Begin(now)
	for key, lexeme := range c.ThoughtIndex {
		tx.MergeLexeme(key, lexeme)
	}
	for key, entry := range c.ContextIndex {
		tx.MergeContextEntry(key, entry)
	}
	return committed(tx, nil)
}

// clear empties the graph. The delta deletes every key.
func (r *Reducer) clear(g *aggregates.ThoughtGraph) Result {
	delta := g.Snapshot()
	for key := range delta.ThoughtIndexUpdates {
		delta.ThoughtIndexUpdates[key] = nil
	}
	for key := range delta.ContextIndexUpdates {
		delta.ContextIndexUpdates[key] = nil
	}
	return Result{Graph: aggregates.NewThoughtGraph(g.Keys()), Delta: delta}
}
