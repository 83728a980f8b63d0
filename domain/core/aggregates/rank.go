package aggregates

import (
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// DefaultRankIncrement is the offset used at the boundary of a sibling list
const DefaultRankIncrement = 1.0

// Ranker computes fractional ranks. New ranks are always placed strictly between two
// neighbors or offset past a boundary, so siblings never need renumbering.
//
// Repeated bisection of the same gap exhausts float64 precision after roughly fifty
// insertions, at which point the midpoint equals a neighbor.
type Ranker struct {
	increment float64
}

// NewRanker creates a Ranker. A non-positive increment falls back to DefaultRankIncrement.
func NewRanker(increment float64) Ranker {
	if increment <= 0 {
		increment = DefaultRankIncrement
	}
	return Ranker{increment: increment}
}

// Increment returns the boundary offset
func (r Ranker) Increment() float64 {
	return r.increment
}

// PrevRank returns a rank before every child of ctx, or 0 when ctx has no children
func (r Ranker) PrevRank(g Reader, ctx valueobjects.Context) float64 {
	children := g.Children(ctx)
	if len(children) == 0 {
		return 0
	}
	return children[0].Rank - r.increment
}

// NextRank returns a rank after every child of ctx, or 0 when ctx has no children
func (r Ranker) NextRank(g Reader, ctx valueobjects.Context) float64 {
	children := g.Children(ctx)
	if len(children) == 0 {
		return 0
	}
	return children[len(children)-1].Rank + r.increment
}

// RankBefore returns a rank between the thought at path and its previous sibling
func (r Ranker) RankBefore(g Reader, path valueobjects.Path) float64 {
	return r.RankBeforeIn(g, path.Parent().Context(), path.Head())
}

// RankAfter returns a rank between the thought at path and its next sibling
func (r Ranker) RankAfter(g Reader, path valueobjects.Path) float64 {
	return r.RankAfterIn(g, path.Parent().Context(), path.Head())
}

// RankBeforeIn is RankBefore for a thought whose context is already resolved
func (r Ranker) RankBeforeIn(g Reader, ctx valueobjects.Context, target valueobjects.PathSegment) float64 {
	children := g.Children(ctx)
	i := indexOfChild(children, target)
	if i < 0 {
		return target.Rank - r.increment
	}
	if i == 0 {
		return children[i].Rank - r.increment
	}
	return (children[i-1].Rank + children[i].Rank) / 2
}

// RankAfterIn is RankAfter for a thought whose context is already resolved
func (r Ranker) RankAfterIn(g Reader, ctx valueobjects.Context, target valueobjects.PathSegment) float64 {
	children := g.Children(ctx)
	i := indexOfChild(children, target)
	if i < 0 {
		return target.Rank + r.increment
	}
	if i == len(children)-1 {
		return children[i].Rank + r.increment
	}
	return (children[i].Rank + children[i+1].Rank) / 2
}

// indexOfChild matches on value and rank first, then on value alone, since a path may
// carry a stale rank after a concurrent move
func indexOfChild(children []entities.ChildRef, target valueobjects.PathSegment) int {
	for i, child := range children {
		if child.Value == target.Value && child.Rank == target.Rank {
			return i
		}
	}
	for i, child := range children {
		if child.Value == target.Value {
			return i
		}
	}
	return -1
}
