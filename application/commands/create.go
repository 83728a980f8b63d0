package commands

import (
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

func (r *Reducer) create(g *aggregates.ThoughtGraph, c Create, now time.Time) (Result, error) {
	if err := r.validator.ValidateValue(c.Value); err != nil {
		return unchanged(g), err
	}
	if c.Rank != nil {
		if err := r.validator.ValidateRank(*c.Rank); err != nil {
			return unchanged(g), err
		}
	}

	at := c.At
	if !at.IsRoot() {
		// inside an open context view the new value becomes another context of the
		// viewed thought
		if c.InsertNewSubthought && r.resolver.IsContextView(at) {
			return r.addAsContext(g, at.Head().Value, c.Value, at, now), nil
		}
		if !c.InsertNewSubthought && r.resolver.IsContextView(at.Parent()) {
			return r.addAsContext(g, at.Parent().Head().Value, c.Value, at.Parent(), now), nil
		}
	}

	var (
		ctx    valueobjects.Context
		rank   float64
		parent valueobjects.Path
	)
	if c.InsertNewSubthought || at.IsRoot() {
		resolved, err := r.resolver.ResolveContext(g, at)
		if err != nil {
			return unchanged(g), nil
		}
		ctx, parent = resolved, at
		if c.InsertBefore {
			rank = r.ranker.PrevRank(g, ctx)
		} else {
			rank = r.ranker.NextRank(g, ctx)
		}
	} else {
		resolved, err := r.resolver.ResolveContext(g, at.Parent())
		if err != nil {
			return unchanged(g), nil
		}
		ctx, parent = resolved, at.Parent()
		if c.InsertBefore {
			rank = r.ranker.RankBeforeIn(g, ctx, at.Head())
		} else {
			rank = r.ranker.RankAfterIn(g, ctx, at.Head())
		}
	}
	if c.Rank != nil {
		rank = *c.Rank
	}

	tx := g.Begin(now)
	tx.AddChildToContext(ctx, entities.ChildRef{Value: c.Value, Rank: rank})
	return committed(tx, parent.Append(valueobjects.PathSegment{Value: c.Value, Rank: rank})), nil
}

// addAsContext files the thought viewed in a context view under a context named value
func (r *Reducer) addAsContext(g *aggregates.ThoughtGraph, viewed, value string, viewPath valueobjects.Path, now time.Time) Result {
	ctx := valueobjects.NewContext(value)
	rank := r.ranker.NextRank(g, ctx)

	tx := g.Begin(now)
	tx.AddChildToContext(ctx, entities.ChildRef{Value: viewed, Rank: rank})
	return committed(tx, viewPath.Append(valueobjects.PathSegment{Value: value, Rank: rank}))
}
