package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
)

func ctx(values ...string) valueobjects.Context {
	return valueobjects.NewContext(values...)
}

func newTestGraph() *ThoughtGraph {
	return NewThoughtGraph(valueobjects.NewKeyFactory(valueobjects.IdentityHasher{}))
}

type entry struct {
	ctx   valueobjects.Context
	value string
	rank  float64
}

// build adds each child under its context in a single transaction stamped t0
func build(t *testing.T, g *ThoughtGraph, entries ...entry) *ThoughtGraph {
	t.Helper()
	tx := g.Begin(t0)
	for _, e := range entries {
		tx.AddChildToContext(e.ctx, entities.ChildRef{Value: e.value, Rank: e.rank})
	}
	out, _ := tx.Commit()
	return out
}

// assertConsistent checks the bidirectional invariant between both indexes
func assertConsistent(t *testing.T, g *ThoughtGraph) {
	t.Helper()
	for key, e := range g.contexts {
		assert.NotEmpty(t, e.Children, "context %s must not be empty", key)
		for _, child := range e.Children {
			lexeme, ok := g.GetLexeme(child.Value)
			require.True(t, ok, "missing lexeme for %q", child.Value)
			ref, ok := lexeme.FindContext(e.Context)
			require.True(t, ok, "lexeme %q missing context %v", child.Value, e.Context)
			assert.Equal(t, child.Rank, ref.Rank)
		}
	}
	for key, lexeme := range g.thoughts {
		assert.NotEmpty(t, lexeme.Contexts, "lexeme %s must not be orphaned", key)
		for _, ref := range lexeme.Contexts {
			assert.True(t, HasChild(g, ref.Context, lexeme.Value), "context %v missing child %q", ref.Context, lexeme.Value)
		}
	}
}

func TestThoughtGraph_AddChildToContext(t *testing.T) {
	// Arrange
	g := newTestGraph()

	// Act
	next, delta := g.AddChildToContext(ctx("a"), entities.ChildRef{Value: "b", Rank: 3}, t1)

	// Assert
	children := next.Children(ctx("a"))
	require.Len(t, children, 1)
	assert.Equal(t, entities.ChildRef{Value: "b", Rank: 3}, children[0])

	lexeme, ok := next.GetLexeme("b")
	require.True(t, ok)
	assert.Equal(t, []entities.ContextRef{{Context: ctx("a"), Rank: 3}}, lexeme.Contexts)
	assert.Equal(t, t1, lexeme.LastUpdated)

	assert.Equal(t, 2, delta.Len())
	assert.Contains(t, delta.ThoughtIndexUpdates, valueobjects.Key("b"))
	assert.Contains(t, delta.ContextIndexUpdates, valueobjects.Key("a"))

	assert.True(t, g.IsEmpty(), "original graph must be unchanged")
	assertConsistent(t, next)
}

func TestThoughtGraph_AddChildToContext_OverwritesSameValue(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx(), "a", 0})

	next, _ := g.AddChildToContext(ctx(), entities.ChildRef{Value: "a", Rank: 5}, t1)

	children := next.Children(ctx())
	require.Len(t, children, 1)
	assert.Equal(t, 5.0, children[0].Rank)
	lexeme, _ := next.GetLexeme("a")
	assert.Len(t, lexeme.Contexts, 1)
	assertConsistent(t, next)
}

func TestThoughtGraph_ChildrenSortedAndCopied(t *testing.T) {
	g := build(t, newTestGraph(),
		entry{ctx(), "c", 2},
		entry{ctx(), "a", 0},
		entry{ctx(), "b", 1},
	)

	children := g.Children(ctx())
	assert.Equal(t, []string{"a", "b", "c"}, values(children))

	children[0].Value = "mutated"
	assert.Equal(t, "a", g.Children(ctx())[0].Value)
	assert.Empty(t, g.Children(ctx("missing")))
	assert.NotNil(t, g.Children(ctx("missing")))
}

func TestThoughtGraph_SameValueInManyContexts(t *testing.T) {
	g := build(t, newTestGraph(),
		entry{ctx(), "a", 0},
		entry{ctx(), "b", 1},
		entry{ctx("a"), "x", 0},
		entry{ctx("b"), "x", 4},
	)

	lexeme, ok := g.GetLexeme("x")
	require.True(t, ok)
	assert.Len(t, lexeme.Contexts, 2)

	next, _ := g.RemoveChildFromContext(ctx("a"), "x", t1)
	lexeme, ok = next.GetLexeme("x")
	require.True(t, ok, "x still appears under b")
	assert.Equal(t, []entities.ContextRef{{Context: ctx("b"), Rank: 4}}, lexeme.Contexts)
	assertConsistent(t, next)
}

func TestThoughtGraph_RemoveChildFromContext_CleansUp(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx("a"), "b", 0})

	next, delta := g.RemoveChildFromContext(ctx("a"), "b", t1)

	assert.True(t, next.IsEmpty())
	_, ok := next.GetContextEntry(ctx("a"))
	assert.False(t, ok)
	require.Contains(t, delta.ThoughtIndexUpdates, valueobjects.Key("b"))
	assert.Nil(t, delta.ThoughtIndexUpdates["b"])
	require.Contains(t, delta.ContextIndexUpdates, valueobjects.Key("a"))
	assert.Nil(t, delta.ContextIndexUpdates["a"])
}

func TestThoughtGraph_RemoveThenAddIsIdempotent(t *testing.T) {
	g := build(t, newTestGraph(),
		entry{ctx("a"), "v", 1},
		entry{ctx("q"), "w", 0},
	)

	// Arrange: two orderings of the same operations with an unrelated write in between
	tx1 := g.Begin(t1)
	tx1.RemoveChildFromContext(ctx("a"), "v")
	tx1.AddChildToContext(ctx("q"), entities.ChildRef{Value: "z", Rank: 1})
	tx1.AddChildToContext(ctx("a"), entities.ChildRef{Value: "v", Rank: 1})
	left, _ := tx1.Commit()

	tx2 := g.Begin(t1)
	tx2.AddChildToContext(ctx("q"), entities.ChildRef{Value: "z", Rank: 1})
	tx2.RemoveChildFromContext(ctx("a"), "v")
	tx2.AddChildToContext(ctx("a"), entities.ChildRef{Value: "v", Rank: 1})
	right, _ := tx2.Commit()

	// Assert
	assert.Equal(t, left.Children(ctx("a")), right.Children(ctx("a")))
	assert.Equal(t, left.Children(ctx("q")), right.Children(ctx("q")))
	leftLexeme, _ := left.GetLexeme("v")
	rightLexeme, _ := right.GetLexeme("v")
	assert.Equal(t, leftLexeme, rightLexeme)
	assertConsistent(t, left)
}

func TestTx_CreatedAndDeletedKeyNotInDelta(t *testing.T) {
	g := newTestGraph()

	tx := g.Begin(t1)
	tx.AddChildToContext(ctx(), entities.ChildRef{Value: "tmp", Rank: 0})
	tx.RemoveChildFromContext(ctx(), "tmp")
	next, delta := tx.Commit()

	assert.True(t, delta.IsEmpty())
	assert.True(t, next.IsEmpty())
}

func TestThoughtGraph_RenameValueInContext(t *testing.T) {
	g := build(t, newTestGraph(),
		entry{ctx(), "old", 7},
		entry{ctx(), "other", 8},
	)

	next, _ := g.RenameValueInContext(ctx(), "old", "new", t1)

	assert.Equal(t, []entities.ChildRef{{Value: "new", Rank: 7}, {Value: "other", Rank: 8}}, next.Children(ctx()))
	_, ok := next.GetLexeme("old")
	assert.False(t, ok)
	lexeme, ok := next.GetLexeme("new")
	require.True(t, ok)
	assert.Equal(t, 7.0, lexeme.Contexts[0].Rank)
	assertConsistent(t, next)

	same, delta := g.RenameValueInContext(ctx(), "old", "old", t1)
	assert.Same(t, g, same)
	assert.True(t, delta.IsEmpty())
}

func TestTx_RemoveSubtree(t *testing.T) {
	g := build(t, newTestGraph(),
		entry{ctx(), "a", 0},
		entry{ctx(), "keep", 1},
		entry{ctx("a"), "b", 0},
		entry{ctx("a", "b"), "c", 0},
		entry{ctx("keep"), "c", 0},
	)

	tx := g.Begin(t1)
	assert.True(t, tx.RemoveSubtree(ctx(), "a"))
	next, _ := tx.Commit()

	assert.Equal(t, []string{"keep"}, values(next.Children(ctx())))
	assert.Empty(t, next.Children(ctx("a")))
	assert.Empty(t, next.Children(ctx("a", "b")))
	_, ok := next.GetLexeme("b")
	assert.False(t, ok)
	lexeme, ok := next.GetLexeme("c")
	require.True(t, ok, "c still appears under keep")
	assert.Len(t, lexeme.Contexts, 1)
	assertConsistent(t, next)
}

func TestTx_RekeySubtree_MovesDescendants(t *testing.T) {
	// Arrange: a/b has a nested subtree that moves to x/b
	g := build(t, newTestGraph(),
		entry{ctx(), "a", 0},
		entry{ctx(), "x", 1},
		entry{ctx("a"), "b", 0},
		entry{ctx("a", "b"), "c1", 1},
		entry{ctx("a", "b"), "c2", 2},
		entry{ctx("a", "b", "c1"), "d", 5},
	)

	// Act
	tx := g.Begin(t1)
	tx.AddChildToContext(ctx("x"), entities.ChildRef{Value: "b", Rank: 0})
	tx.RemoveChildFromContext(ctx("a"), "b")
	require.NoError(t, tx.RekeySubtree(ctx("a", "b"), ctx("x", "b")))
	next, delta := tx.Commit()

	// Assert
	assert.Equal(t, []entities.ChildRef{{Value: "c1", Rank: 1}, {Value: "c2", Rank: 2}}, next.Children(ctx("x", "b")))
	assert.Equal(t, []entities.ChildRef{{Value: "d", Rank: 5}}, next.Children(ctx("x", "b", "c1")))
	assert.Empty(t, next.Children(ctx("a", "b")))
	assert.Empty(t, next.Children(ctx("a", "b", "c1")))

	lexeme, _ := next.GetLexeme("d")
	assert.Equal(t, []entities.ContextRef{{Context: ctx("x", "b", "c1"), Rank: 5}}, lexeme.Contexts)

	keys := next.Keys()
	for _, moved := range []valueobjects.Context{ctx("a", "b"), ctx("a", "b", "c1")} {
		require.Contains(t, delta.ContextIndexUpdates, keys.Context(moved))
		assert.Nil(t, delta.ContextIndexUpdates[keys.Context(moved)])
	}
	assert.NotNil(t, delta.ContextIndexUpdates[keys.Context(ctx("x", "b", "c1"))])
	assertConsistent(t, next)
}

func TestTx_RekeySubtree_RejectsMoveIntoSelf(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx("a"), "b", 0})

	err := g.Begin(t1).RekeySubtree(ctx("a"), ctx("a", "b", "a"))

	assert.Error(t, err)
}

func TestTx_MergeLexeme_LastWriteWins(t *testing.T) {
	keys := valueobjects.NewKeyFactory(valueobjects.IdentityHasher{})
	key := keys.Thought("v")
	older := &entities.Lexeme{Value: "v", Contexts: []entities.ContextRef{{Context: ctx("old"), Rank: 0}}, LastUpdated: t1}
	newer := &entities.Lexeme{Value: "v", Contexts: []entities.ContextRef{{Context: ctx("new"), Rank: 0}}, LastUpdated: t2}

	tests := []struct {
		name  string
		order []*entities.Lexeme
	}{
		{name: "older first", order: []*entities.Lexeme{older, newer}},
		{name: "newer first", order: []*entities.Lexeme{newer, older}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph()
			for _, remote := range tt.order {
				tx := g.Begin(t0)
				tx.MergeLexeme(key, remote)
				g, _ = tx.Commit()
			}

			lexeme, ok := g.LexemeByKey(key)
			require.True(t, ok)
			assert.Equal(t, t2, lexeme.LastUpdated)
			assert.Equal(t, ctx("new"), lexeme.Contexts[0].Context)
		})
	}
}

func TestTx_MergeLexeme_EqualTimestampKeepsLocal(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx(), "v", 0})
	local, _ := g.GetLexeme("v")

	tx := g.Begin(t1)
	applied := tx.MergeLexeme(g.Keys().Thought("v"), &entities.Lexeme{Value: "v", Contexts: []entities.ContextRef{{Context: ctx("x")}}, LastUpdated: local.LastUpdated})

	assert.False(t, applied)
}

func TestTx_MergeTombstone_DeletesLocal(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx("a"), "v", 0})
	keys := g.Keys()

	tx := g.Begin(t0)
	assert.True(t, tx.MergeLexeme(keys.Thought("v"), &entities.Lexeme{Value: "v", LastUpdated: t2}))
	assert.True(t, tx.MergeContextEntry(keys.Context(ctx("a")), &entities.ContextEntry{Context: ctx("a"), LastUpdated: t2}))
	next, delta := tx.Commit()

	assert.True(t, next.IsEmpty())
	assert.Equal(t, 2, delta.Len())
}

func TestThoughtGraph_Snapshot(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx(), "a", 0}, entry{ctx("a"), "b", 0})

	snapshot := g.Snapshot()

	assert.Len(t, snapshot.ThoughtIndexUpdates, g.ThoughtCount())
	assert.Len(t, snapshot.ContextIndexUpdates, g.ContextCount())
}

func TestDelta_Merge_LaterWins(t *testing.T) {
	first := NewDelta()
	first.ThoughtIndexUpdates["a"] = &entities.Lexeme{Value: "a"}
	first.ContextIndexUpdates["c"] = &entities.ContextEntry{}
	first.Timestamp = t2
	later := NewDelta()
	later.ThoughtIndexUpdates["a"] = nil
	later.Timestamp = t0

	merged := first.Merge(later)

	require.Contains(t, merged.ThoughtIndexUpdates, valueobjects.Key("a"))
	assert.Nil(t, merged.ThoughtIndexUpdates["a"])
	assert.Equal(t, 2, merged.Len())
	assert.NotNil(t, first.ThoughtIndexUpdates["a"])
	assert.Equal(t, t2, merged.Timestamp, "the newest timestamp is kept")
}

func TestTx_Commit_StampsDelta(t *testing.T) {
	g := build(t, newTestGraph(), entry{ctx(), "a", 0})

	_, delta := g.RemoveChildFromContext(ctx(), "a", t2)

	assert.Equal(t, t2, delta.Timestamp)
	assert.Nil(t, delta.ThoughtIndexUpdates[g.Keys().Thought("a")])
}

func values(children []entities.ChildRef) []string {
	out := make([]string, len(children))
	for i, child := range children {
		out[i] = child.Value
	}
	return out
}
