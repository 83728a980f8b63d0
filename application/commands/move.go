package commands

import (
	"fmt"
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/domain/services"
)

func (r *Reducer) move(g *aggregates.ThoughtGraph, c Move, now time.Time) (Result, error) {
	dest := c.To.Head()
	if err := r.validator.ValidateRank(dest.Rank); err != nil {
		return unchanged(g), err
	}

	loc, err := r.resolver.Locate(g, c.From)
	if err != nil {
		return unchanged(g), nil
	}
	destCtx, err := r.resolver.ResolveContext(g, c.To.Parent())
	if err != nil {
		return unchanged(g), nil
	}

	if destCtx.HasPrefix(loc.Context.Append(loc.Value)) {
		return rejected(g, fmt.Sprintf("\"%s\" cannot be moved into itself.", r.ellipsize(loc.Value))), nil
	}
	if alert := r.moveAlert(g, loc, destCtx); alert != "" {
		return rejected(g, alert), nil
	}

	tx := g.Begin(now)
	if err := moveThought(tx, loc, destCtx, dest.Rank); err != nil {
		return unchanged(g), err
	}
	return committed(tx, c.To.Parent().Append(valueobjects.PathSegment{Value: loc.Value, Rank: dest.Rank})), nil
}

// moveDown swaps the thought with its next sibling. The last thought of a context moves
// to the top of its next uncle.
func (r *Reducer) moveDown(g *aggregates.ThoughtGraph, c MoveDown, now time.Time) (Result, error) {
	loc, err := r.resolver.Locate(g, c.Path)
	if err != nil {
		return unchanged(g), nil
	}
	path := loc.Path(g)

	var (
		destCtx  valueobjects.Context
		destPath valueobjects.Path
		rank     float64
	)
	if next, ok := aggregates.NextSibling(g, loc.Context, loc.Value, loc.Rank); ok {
		destCtx, destPath = loc.Context, path.Parent()
		rank = r.ranker.RankAfterIn(g, loc.Context, valueobjects.PathSegment{Value: next.Value, Rank: next.Rank})
	} else if uncle, ok := aggregates.ThoughtAfter(g, path); ok {
		destCtx, destPath = uncle.Context(), uncle
		rank = r.ranker.PrevRank(g, destCtx)
	} else {
		return unchanged(g), nil
	}

	if alert := r.moveAlert(g, loc, loc.Context); alert != "" {
		return rejected(g, alert), nil
	}

	tx := g.Begin(now)
	if err := moveThought(tx, loc, destCtx, rank); err != nil {
		return unchanged(g), err
	}
	return committed(tx, destPath.Append(valueobjects.PathSegment{Value: loc.Value, Rank: rank})), nil
}

// moveUp swaps the thought with its previous sibling. The first thought of a context moves
// to the bottom of its previous uncle.
func (r *Reducer) moveUp(g *aggregates.ThoughtGraph, c MoveUp, now time.Time) (Result, error) {
	loc, err := r.resolver.Locate(g, c.Path)
	if err != nil {
		return unchanged(g), nil
	}
	path := loc.Path(g)

	var (
		destCtx  valueobjects.Context
		destPath valueobjects.Path
		rank     float64
	)
	if prev, ok := aggregates.PrevSibling(g, loc.Context, loc.Value, loc.Rank); ok {
		destCtx, destPath = loc.Context, path.Parent()
		rank = r.ranker.RankBeforeIn(g, loc.Context, valueobjects.PathSegment{Value: prev.Value, Rank: prev.Rank})
	} else if uncle, ok := aggregates.ThoughtBefore(g, path); ok {
		destCtx, destPath = uncle.Context(), uncle
		rank = r.ranker.NextRank(g, destCtx)
	} else {
		return unchanged(g), nil
	}

	if alert := r.moveAlert(g, loc, loc.Context); alert != "" {
		return rejected(g, alert), nil
	}

	tx := g.Begin(now)
	if err := moveThought(tx, loc, destCtx, rank); err != nil {
		return unchanged(g), err
	}
	return committed(tx, destPath.Append(valueobjects.PathSegment{Value: loc.Value, Rank: rank})), nil
}

// moveThought relocates loc to rank in destCtx and rekeys its subtree. A move within the
// same context only changes the rank.
func moveThought(tx *aggregates.Tx, loc services.Location, destCtx valueobjects.Context, rank float64) error {
	tx.AddChildToContext(destCtx, entities.ChildRef{Value: loc.Value, Rank: rank})
	if destCtx.Equals(loc.Context) {
		return nil
	}
	tx.RemoveChildFromContext(loc.Context, loc.Value)
	return tx.RekeySubtree(loc.Context.Append(loc.Value), destCtx.Append(loc.Value))
}
