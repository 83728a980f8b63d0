package valueobjects

import (
	"strings"
)

// Context is an ordered sequence of ancestor values, root first. The root context is
// the empty sequence. A Context carries no ranks.
type Context []string

// NewContext creates a Context from values
func NewContext(values ...string) Context {
	ctx := make(Context, len(values))
	copy(ctx, values)
	return ctx
}

// ParseContext splits a slash-separated context. Empty input is the root context.
func ParseContext(s string) Context {
	s = strings.Trim(s, "/")
	if s == "" {
		return Context{}
	}
	return Context(strings.Split(s, "/"))
}

// IsRoot reports whether ctx is the root context
func (c Context) IsRoot() bool {
	return len(c) == 0
}

// Head returns the last value, or "" for the root context
func (c Context) Head() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// Parent returns the context without its last value. The parent of root is root.
func (c Context) Parent() Context {
	if len(c) == 0 {
		return Context{}
	}
	return NewContext(c[:len(c)-1]...)
}

// Append returns a new context with value appended. The receiver is never aliased.
func (c Context) Append(values ...string) Context {
	out := make(Context, 0, len(c)+len(values))
	out = append(out, c...)
	return append(out, values...)
}

// Equals checks if two contexts hold the same values in the same order
func (c Context) Equals(other Context) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor-or-self of c
func (c Context) HasPrefix(prefix Context) bool {
	if len(prefix) > len(c) {
		return false
	}
	return Context(c[:len(prefix)]).Equals(prefix)
}

// String returns the slash-separated form used in logs and URLs
func (c Context) String() string {
	return strings.Join(c, "/")
}

// PathSegment is one ranked step of a Path
type PathSegment struct {
	Value string  `json:"value" validate:"max=10000"`
	Rank  float64 `json:"rank"`
}

// Path is an ordered sequence of ranked segments from the root to a thought. Unlike a
// Context it identifies one specific position.
type Path []PathSegment

// NewPath creates a Path from segments
func NewPath(segments ...PathSegment) Path {
	p := make(Path, len(segments))
	copy(p, segments)
	return p
}

// IsRoot reports whether p is the root path
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Head returns the last segment
func (p Path) Head() PathSegment {
	if len(p) == 0 {
		return PathSegment{}
	}
	return p[len(p)-1]
}

// Parent returns the path without its last segment
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return NewPath(p[:len(p)-1]...)
}

// Append returns a new path with segments appended
func (p Path) Append(segments ...PathSegment) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Context strips the ranks from p
func (p Path) Context() Context {
	ctx := make(Context, len(p))
	for i, seg := range p {
		ctx[i] = seg.Value
	}
	return ctx
}

// Equals checks if two paths hold the same segments
func (p Path) Equals(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// PathToContext strips the ranks from a path
func PathToContext(p Path) Context {
	return p.Context()
}
