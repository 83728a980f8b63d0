package commands

import (
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// edit renames a thought in place. Its rank is kept and its subtree follows it to the
// new context.
func (r *Reducer) edit(g *aggregates.ThoughtGraph, c Edit, now time.Time) (Result, error) {
	if err := r.validator.ValidateValue(c.NewValue); err != nil {
		return unchanged(g), err
	}
	if c.OldValue == c.NewValue {
		return unchanged(g), nil
	}

	head := c.Path.Head()
	loc, err := r.resolver.Locate(g, c.Path.Parent().Append(valueobjects.PathSegment{Value: c.OldValue, Rank: head.Rank}))
	if err != nil {
		return unchanged(g), nil
	}

	tx := g.Begin(now)
	tx.RenameValueInContext(loc.Context, loc.Value, c.NewValue)
	if err := tx.RekeySubtree(loc.Context.Append(loc.Value), loc.Context.Append(c.NewValue)); err != nil {
		return unchanged(g), err
	}
	return committed(tx, c.Path.Parent().Append(valueobjects.PathSegment{Value: c.NewValue, Rank: loc.Rank})), nil
}
