package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_AppendDoesNotAlias(t *testing.T) {
	base := make(Context, 1, 4)
	base[0] = "a"

	left := base.Append("b")
	right := base.Append("c")

	assert.Equal(t, NewContext("a", "b"), left)
	assert.Equal(t, NewContext("a", "c"), right)
}

func TestContext_Navigation(t *testing.T) {
	ctx := NewContext("a", "b", "c")

	assert.Equal(t, "c", ctx.Head())
	assert.Equal(t, NewContext("a", "b"), ctx.Parent())
	assert.True(t, Context{}.IsRoot())
	assert.True(t, Context{}.Parent().IsRoot())
	assert.Equal(t, "", Context{}.Head())
	assert.True(t, ctx.HasPrefix(NewContext("a", "b")))
	assert.True(t, ctx.HasPrefix(Context{}))
	assert.False(t, ctx.HasPrefix(NewContext("b")))
}

func TestParseContext(t *testing.T) {
	assert.Equal(t, Context{}, ParseContext(""))
	assert.Equal(t, Context{}, ParseContext("/"))
	assert.Equal(t, NewContext("a", "b"), ParseContext("/a/b/"))
	assert.Equal(t, "a/b", ParseContext("a/b").String())
}

func TestPath_Context(t *testing.T) {
	path := NewPath(PathSegment{Value: "a", Rank: 0}, PathSegment{Value: "b", Rank: 3})

	assert.Equal(t, NewContext("a", "b"), PathToContext(path))
	assert.Equal(t, PathSegment{Value: "b", Rank: 3}, path.Head())
	assert.Equal(t, NewPath(PathSegment{Value: "a", Rank: 0}), path.Parent())
	assert.True(t, Path{}.Parent().IsRoot())
	assert.True(t, path.Append(PathSegment{Value: "c", Rank: 1}).Parent().Equals(path))
}
