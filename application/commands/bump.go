package commands

import (
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// bumpDown clears the thought's text and pushes its value down as its new first child.
// "a" with child "b" becomes "" with children "a" and "b". A thought without children is
// subcategorized instead.
func (r *Reducer) bumpDown(g *aggregates.ThoughtGraph, c BumpDown, now time.Time) (Result, error) {
	loc, err := r.resolver.Locate(g, c.Path)
	if err != nil {
		return unchanged(g), nil
	}
	thoughtCtx := loc.Context.Append(loc.Value)
	if len(g.Children(thoughtCtx)) == 0 {
		return r.subCategorize(g, SubCategorize(c), now)
	}
	if loc.Value == "" {
		return unchanged(g), nil
	}

	tx := g.Begin(now)
	rank := r.ranker.RankBeforeIn(tx, loc.Context, valueobjects.PathSegment{Value: loc.Value, Rank: loc.Rank})
	tx.AddChildToContext(loc.Context, entities.ChildRef{Value: loc.Value, Rank: rank})
	tx.AddChildToContext(thoughtCtx, entities.ChildRef{Value: loc.Value, Rank: r.ranker.PrevRank(tx, thoughtCtx)})
	tx.RenameValueInContext(loc.Context, loc.Value, "")
	if err := tx.RekeySubtree(thoughtCtx, loc.Context.Append("")); err != nil {
		return unchanged(g), err
	}
	return committed(tx, c.Path.Parent().Append(valueobjects.PathSegment{Value: "", Rank: rank})), nil
}

// subCategorize inserts an empty thought before the thought and moves the thought into it
func (r *Reducer) subCategorize(g *aggregates.ThoughtGraph, c SubCategorize, now time.Time) (Result, error) {
	loc, err := r.resolver.Locate(g, c.Path)
	if err != nil || loc.Value == "" {
		return unchanged(g), nil
	}
	if alert := r.subCategorizeAlert(g, loc); alert != "" {
		return rejected(g, alert), nil
	}

	tx := g.Begin(now)
	rank := r.ranker.RankBeforeIn(tx, loc.Context, valueobjects.PathSegment{Value: loc.Value, Rank: loc.Rank})
	tx.AddChildToContext(loc.Context, entities.ChildRef{Value: "", Rank: rank})

	emptyCtx := loc.Context.Append("")
	childRank := r.ranker.NextRank(tx, emptyCtx)
	if err := moveThought(tx, loc, emptyCtx, childRank); err != nil {
		return unchanged(g), err
	}

	cursor := c.Path.Parent().Append(
		valueobjects.PathSegment{Value: "", Rank: rank},
		valueobjects.PathSegment{Value: loc.Value, Rank: childRank},
	)
	return committed(tx, cursor), nil
}
