package commands

import (
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// delete removes the thought and its subtree. The cursor moves to the previous sibling,
// then the next one, then the parent.
func (r *Reducer) delete(g *aggregates.ThoughtGraph, c Delete, now time.Time) (Result, error) {
	loc, err := r.resolver.Locate(g, c.Path)
	if err != nil {
		return unchanged(g), nil
	}
	if alert := r.deleteAlert(g, loc); alert != "" {
		return rejected(g, alert), nil
	}

	cursor := c.Path.Parent()
	if prev, ok := aggregates.PrevSibling(g, loc.Context, loc.Value, loc.Rank); ok {
		cursor = cursor.Append(valueobjects.PathSegment{Value: prev.Value, Rank: prev.Rank})
	} else if next, ok := aggregates.NextSibling(g, loc.Context, loc.Value, loc.Rank); ok {
		cursor = cursor.Append(valueobjects.PathSegment{Value: next.Value, Rank: next.Rank})
	}

	tx := g.Begin(now)
	tx.RemoveSubtree(loc.Context, loc.Value)
	return committed(tx, cursor), nil
}
