package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/domain/services"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func ctx(values ...string) valueobjects.Context {
	return valueobjects.NewContext(values...)
}

func seg(value string, rank float64) valueobjects.PathSegment {
	return valueobjects.PathSegment{Value: value, Rank: rank}
}

func path(segments ...valueobjects.PathSegment) valueobjects.Path {
	return valueobjects.NewPath(segments...)
}

func newGraph() *aggregates.ThoughtGraph {
	return aggregates.NewThoughtGraph(valueobjects.NewKeyFactory(valueobjects.IdentityHasher{}))
}

func newReducer() *Reducer {
	return NewReducer(config.DefaultDomainConfig(), nil)
}

// outline imports text into an empty graph
func outline(t *testing.T, r *Reducer, text string) *aggregates.ThoughtGraph {
	t.Helper()
	result, err := r.Reduce(newGraph(), ImportText{Text: text}, t0)
	require.NoError(t, err)
	return result.Graph
}

func reduce(t *testing.T, r *Reducer, g *aggregates.ThoughtGraph, cmd Command) Result {
	t.Helper()
	result, err := r.Reduce(g, cmd, t1)
	require.NoError(t, err)
	return result
}

func childValues(g aggregates.Reader, c valueobjects.Context) []string {
	children := g.Children(c)
	out := make([]string, len(children))
	for i, child := range children {
		out[i] = child.Value
	}
	return out
}

func TestReduce_CreateSiblingsThenDelete(t *testing.T) {
	// Arrange
	r := newReducer()
	g := newGraph()

	// Act: create a, then b and =test as siblings
	res := reduce(t, r, g, Create{Value: "a"})
	res = reduce(t, r, res.Graph, Create{At: res.Cursor, Value: "b"})
	res = reduce(t, r, res.Graph, Create{At: res.Cursor, Value: "=test"})
	g = res.Graph

	// Assert
	assert.Equal(t, []string{"a", "b", "=test"}, childValues(g, ctx()))
	children := g.Children(ctx())
	assert.Less(t, children[0].Rank, children[1].Rank)
	assert.Less(t, children[1].Rank, children[2].Rank)

	// Act: delete a, then b
	a := children[0]
	b := children[1]
	res = reduce(t, r, g, Delete{Path: path(seg(a.Value, a.Rank))})
	res = reduce(t, r, res.Graph, Delete{Path: path(seg(b.Value, b.Rank))})

	// Assert
	assert.Equal(t, []string{"=test"}, childValues(res.Graph, ctx()))
	assert.Empty(t, aggregates.VisibleChildren(res.Graph, ctx()))
	_, ok := res.Graph.GetLexeme("a")
	assert.False(t, ok)
}

func TestReduce_CreateRanks(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n- b\n  - b1")

	tests := []struct {
		name     string
		cmd      Create
		ctx      valueobjects.Context
		expected []string
	}{
		{name: "after", cmd: Create{At: path(seg("a", 0)), Value: "x"}, ctx: ctx(), expected: []string{"a", "x", "b"}},
		{name: "before", cmd: Create{At: path(seg("a", 0)), Value: "x", InsertBefore: true}, ctx: ctx(), expected: []string{"x", "a", "b"}},
		{name: "new subthought appends", cmd: Create{At: path(seg("b", 1)), Value: "x", InsertNewSubthought: true}, ctx: ctx("b"), expected: []string{"b1", "x"}},
		{name: "new subthought before", cmd: Create{At: path(seg("b", 1)), Value: "x", InsertNewSubthought: true, InsertBefore: true}, ctx: ctx("b"), expected: []string{"x", "b1"}},
		{name: "explicit rank", cmd: Create{Value: "x", Rank: floatPtr(-10)}, ctx: ctx(), expected: []string{"x", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reduce(t, r, g, tt.cmd)
			assert.Equal(t, tt.expected, childValues(res.Graph, tt.ctx))
			assert.Equal(t, "x", res.Cursor.Head().Value)
		})
	}
}

func TestReduce_CreateRejectsInvalidInput(t *testing.T) {
	r := newReducer()
	g := newGraph()

	_, err := r.Reduce(g, Create{Value: valueobjects.RootToken}, t1)
	assert.Error(t, err)

	_, err = r.Reduce(g, Create{Value: "x", Rank: floatPtr(nan())}, t1)
	assert.Error(t, err)
}

func TestReduce_RejectsInvalidPaths(t *testing.T) {
	r := NewReducer(&config.DomainConfig{RankIncrement: 1, MaxValueLength: 5, EllipsizeLength: 10, MaxImportDepth: 4, MaxImportEntries: 100}, nil)
	g := outline(t, r, "- a\n  - b")
	long := "far too long"

	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "move source value too long", cmd: Move{From: path(seg(long, 0)), To: path(seg("a", 0), seg(long, 1))}},
		{name: "move destination rank", cmd: Move{From: path(seg("a", 0), seg("b", 0)), To: path(seg("a", nan()))}},
		{name: "edit reserved value", cmd: Edit{Path: path(seg(valueobjects.RootToken, 0)), OldValue: "a", NewValue: "c"}},
		{name: "delete value too long", cmd: Delete{Path: path(seg(long, 0))}},
		{name: "create too deep", cmd: Create{At: path(seg("a", 0), seg("a", 0), seg("a", 0), seg("a", 0), seg("a", 0)), Value: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Reduce(g, tt.cmd, t1)

			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Same(t, g, res.Graph)
			assert.False(t, res.Changed())
		})
	}
}

func TestReduce_CreateInContextViewAddsContext(t *testing.T) {
	r0 := newReducer()
	g := outline(t, r0, "- a\n  - x")
	views := services.NewContextViews(g.Keys())
	views.Toggle(ctx("a", "x"))
	r := NewReducer(config.DefaultDomainConfig(), views)

	res := reduce(t, r, g, Create{At: path(seg("a", 0), seg("x", 0)), Value: "elsewhere", InsertNewSubthought: true})

	assert.Equal(t, []string{"x"}, childValues(res.Graph, ctx("elsewhere")))
	lexeme, ok := res.Graph.GetLexeme("x")
	require.True(t, ok)
	assert.Len(t, lexeme.Contexts, 2)
}

func TestReduce_EditMovesChildren(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - b\n    - c\n- z")

	res := reduce(t, r, g, Edit{Path: path(seg("a", 0), seg("b", 0)), OldValue: "b", NewValue: "B"})

	assert.Equal(t, []string{"B"}, childValues(res.Graph, ctx("a")))
	assert.Equal(t, []string{"c"}, childValues(res.Graph, ctx("a", "B")))
	assert.Empty(t, res.Graph.Children(ctx("a", "b")))
	assert.Equal(t, 0.0, res.Graph.Children(ctx("a"))[0].Rank)
	assert.Equal(t, path(seg("a", 0), seg("B", 0)), res.Cursor)
	_, ok := res.Graph.GetLexeme("b")
	assert.False(t, ok)
}

func TestReduce_EditMissingIsNoop(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a")

	res := reduce(t, r, g, Edit{Path: path(seg("missing", 0)), OldValue: "missing", NewValue: "x"})

	assert.False(t, res.Changed())
	assert.Same(t, g, res.Graph)
}

func TestReduce_MoveSubtreeRekeysDescendants(t *testing.T) {
	// Arrange
	r := newReducer()
	g := outline(t, r, `
- a
  - b
    - c1
      - d1
      - d2
    - c2
- x
  - y
`)
	keys := g.Keys()

	// Act: move a/b under x after y
	res := reduce(t, r, g, Move{From: path(seg("a", 0), seg("b", 0)), To: path(seg("x", 1), seg("b", 5))})

	// Assert
	next := res.Graph
	assert.Empty(t, next.Children(ctx("a")))
	assert.Equal(t, []string{"y", "b"}, childValues(next, ctx("x")))
	assert.Equal(t, []string{"c1", "c2"}, childValues(next, ctx("x", "b")))
	assert.Equal(t, []string{"d1", "d2"}, childValues(next, ctx("x", "b", "c1")))

	for _, old := range []valueobjects.Context{ctx("a", "b"), ctx("a", "b", "c1")} {
		require.Contains(t, res.Delta.ContextIndexUpdates, keys.Context(old))
		assert.Nil(t, res.Delta.ContextIndexUpdates[keys.Context(old)])
	}
	lexeme, _ := next.GetLexeme("d2")
	assert.Equal(t, []entities.ContextRef{{Context: ctx("x", "b", "c1"), Rank: 1}}, lexeme.Contexts)
}

func TestReduce_MoveIntoItselfIsRejected(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - b")

	res := reduce(t, r, g, Move{From: path(seg("a", 0)), To: path(seg("a", 0), seg("b", 0), seg("a", 0))})

	assert.False(t, res.Changed())
	assert.Contains(t, res.Alert, "cannot be moved into itself")
}

func TestReduce_MovePolicy(t *testing.T) {
	r := newReducer()

	tests := []struct {
		name     string
		outline  string
		cmd      Command
		expected string
	}{
		{
			name:     "sorted parent",
			outline:  "- p\n  - =sort\n    - Alphabetical\n  - a\n  - b",
			cmd:      MoveDown{Path: path(seg("p", 0), seg("a", 1))},
			expected: `Cannot move subthoughts of "p" while sort is enabled.`,
		},
		{
			name:     "read-only thought",
			outline:  "- a\n  - =readonly\n- b",
			cmd:      MoveDown{Path: path(seg("a", 0))},
			expected: `"a" is read-only and cannot be moved.`,
		},
		{
			name:     "immovable thought",
			outline:  "- a\n  - =immovable\n- b",
			cmd:      MoveDown{Path: path(seg("a", 0))},
			expected: `"a" is immovable.`,
		},
		{
			name:     "read-only parent",
			outline:  "- p\n  - =readonly\n  - a\n  - b",
			cmd:      MoveDown{Path: path(seg("p", 0), seg("a", 1))},
			expected: `Subthoughts of "p" are read-only and cannot be moved.`,
		},
		{
			name:     "immovable parent",
			outline:  "- p\n  - =immovable\n  - a\n  - b",
			cmd:      MoveDown{Path: path(seg("p", 0), seg("a", 1))},
			expected: `Subthoughts of "p" are immovable.`,
		},
		{
			name:     "move into sorted destination",
			outline:  "- a\n- p\n  - =sort\n    - Alphabetical",
			cmd:      Move{From: path(seg("a", 0)), To: path(seg("p", 1), seg("a", 9))},
			expected: `Cannot move subthoughts of "p" while sort is enabled.`,
		},
		{
			name:     "ellipsized value",
			outline:  "- abcdefghijklmnopqrstuvwxyz0123\n  - =immovable\n- b",
			cmd:      MoveDown{Path: path(seg("abcdefghijklmnopqrstuvwxyz0123", 0))},
			expected: `"abcdefghijklmnopqrstuvwxy..." is immovable.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := outline(t, r, tt.outline)

			res := reduce(t, r, g, tt.cmd)

			assert.Equal(t, tt.expected, res.Alert)
			assert.False(t, res.Changed())
			assert.Same(t, g, res.Graph)
		})
	}
}

func TestReduce_MoveDownAndUp(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- p\n  - a\n  - b\n- q\n  - c")

	res := reduce(t, r, g, MoveDown{Path: path(seg("p", 0), seg("a", 0))})
	assert.Equal(t, []string{"b", "a"}, childValues(res.Graph, ctx("p")))

	// the last thought moves to the top of its next uncle
	res = reduce(t, r, res.Graph, MoveDown{Path: res.Cursor})
	assert.Equal(t, []string{"b"}, childValues(res.Graph, ctx("p")))
	assert.Equal(t, []string{"a", "c"}, childValues(res.Graph, ctx("q")))
	assert.Equal(t, "q", res.Cursor[0].Value)

	// and back up to the bottom of its previous uncle
	res = reduce(t, r, res.Graph, MoveUp{Path: res.Cursor})
	assert.Equal(t, []string{"b", "a"}, childValues(res.Graph, ctx("p")))

	// nothing below the last root thought
	last := reduce(t, r, res.Graph, MoveDown{Path: path(seg("q", 1))})
	assert.False(t, last.Changed())
}

func TestReduce_DeletePolicy(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - =readonly\n  - child")

	res := reduce(t, r, g, Delete{Path: path(seg("a", 0))})
	assert.Equal(t, `"a" is read-only and cannot be deleted.`, res.Alert)

	res = reduce(t, r, g, Delete{Path: path(seg("a", 0), seg("child", 1))})
	assert.Equal(t, `Subthoughts of "a" are read-only and cannot be deleted.`, res.Alert)
}

func TestReduce_DeleteRemovesSubtree(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - b\n    - c\n- d")

	res := reduce(t, r, g, Delete{Path: path(seg("a", 0))})

	assert.Equal(t, []string{"d"}, childValues(res.Graph, ctx()))
	assert.Equal(t, 2, res.Graph.ThoughtCount()+res.Graph.ContextCount())
	assert.Equal(t, path(seg("d", 1)), res.Cursor)

	noop := reduce(t, r, g, Delete{Path: path(seg("missing", 0))})
	assert.False(t, noop.Changed())
}

func TestReduce_BumpDown(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - b\n    - c")

	res := reduce(t, r, g, BumpDown{Path: path(seg("a", 0))})

	next := res.Graph
	assert.Equal(t, []string{""}, childValues(next, ctx()))
	assert.Equal(t, []string{"a", "b"}, childValues(next, ctx("")))
	assert.Equal(t, []string{"c"}, childValues(next, ctx("", "b")))
	assert.Empty(t, next.Children(ctx("a")))
	assert.Equal(t, "", res.Cursor.Head().Value)

	lexeme, ok := next.GetLexeme("a")
	require.True(t, ok)
	assert.Equal(t, ctx(""), lexeme.Contexts[0].Context)

	for key := range res.Delta.ContextIndexUpdates {
		assert.False(t, key.IsZero(), "every context key is addressable")
	}
	assert.Contains(t, res.Delta.ContextIndexUpdates, valueobjects.Key(valueobjects.EmptyToken))
}

func TestReduce_BumpDownWithoutChildrenSubcategorizes(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n- b")

	res := reduce(t, r, g, BumpDown{Path: path(seg("b", 1))})

	assert.Equal(t, []string{"a", ""}, childValues(res.Graph, ctx()))
	assert.Equal(t, []string{"b"}, childValues(res.Graph, ctx("")))
	assert.Equal(t, []string{"", "b"}, []string{res.Cursor[0].Value, res.Cursor[1].Value})
}

func TestReduce_SubCategorizePolicy(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- p\n  - =readonly\n  - a")

	res := reduce(t, r, g, SubCategorize{Path: path(seg("p", 0), seg("a", 1))})

	assert.Equal(t, `"p" is read-only so "a" may not be subcategorized.`, res.Alert)
}

func TestReduce_ImportIsIdempotent(t *testing.T) {
	r := newReducer()
	g := newGraph()

	first := reduce(t, r, g, ImportInitialSettings())
	second := reduce(t, r, first.Graph, ImportInitialSettings())

	assert.False(t, second.Changed())
	theme, ok := aggregates.GetSetting(first.Graph, "Theme")
	require.True(t, ok)
	assert.Equal(t, "Dark", theme)
}

func TestReduce_ImportTooLarge(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxImportEntries = 2
	r := NewReducer(cfg, nil)

	_, err := r.Reduce(newGraph(), ImportText{Text: "- a\n- b\n- c"}, t1)

	assert.True(t, pkgerrors.IsValidation(err))
}

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []OutlineLine
	}{
		{
			name:     "bullets and spaces",
			text:     "- a\n  - b\n    - c\n- d",
			expected: []OutlineLine{{0, "a"}, {1, "b"}, {2, "c"}, {0, "d"}},
		},
		{
			name:     "tabs and blank lines",
			text:     "a\n\tb\n\n\t\tc",
			expected: []OutlineLine{{0, "a"}, {1, "b"}, {2, "c"}},
		},
		{
			name:     "indented base and jumps are clamped",
			text:     "    - a\n            - b",
			expected: []OutlineLine{{0, "a"}, {1, "b"}},
		},
		{
			name:     "empty bullet",
			text:     "- a\n  -",
			expected: []OutlineLine{{0, "a"}, {1, ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := ParseOutline(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lines)
		})
	}
}

func TestReduce_MergeRemote_LastWriteWins(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a")
	keys := g.Keys()
	t2 := t1.Add(time.Minute)

	stale := MergeRemote{Origin: OriginRemote, ThoughtIndex: map[valueobjects.Key]*entities.Lexeme{
		keys.Thought("a"): {Value: "a", LastUpdated: t0.Add(-time.Hour)},
	}}
	assert.False(t, reduce(t, r, g, stale).Changed())

	fresh := MergeRemote{Origin: OriginRemote, ThoughtIndex: map[valueobjects.Key]*entities.Lexeme{
		keys.Thought("b"): {Value: "b", Contexts: []entities.ContextRef{{Context: ctx(), Rank: 1}}, LastUpdated: t2},
	}, ContextIndex: map[valueobjects.Key]*entities.ContextEntry{
		keys.Context(ctx()): {Context: ctx(), Children: []entities.ChildRef{{Value: "a", Rank: 0}, {Value: "b", Rank: 1}}, LastUpdated: t2},
	}}
	res := reduce(t, r, g, fresh)
	assert.Equal(t, []string{"a", "b"}, childValues(res.Graph, ctx()))
	assert.Equal(t, 2, res.Delta.Len())
}

func TestReduce_Clear(t *testing.T) {
	r := newReducer()
	g := outline(t, r, "- a\n  - b")

	res := reduce(t, r, g, Clear{})

	assert.True(t, res.Graph.IsEmpty())
	assert.Equal(t, g.ThoughtCount()+g.ContextCount(), res.Delta.Len())
	for _, lexeme := range res.Delta.ThoughtIndexUpdates {
		assert.Nil(t, lexeme)
	}
}
