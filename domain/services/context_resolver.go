package services

import (
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

// ContextViews is the set of paths whose thought currently lists its parent contexts
// instead of its children. Toggles are transient view state and are never stored in the
// graph. Paths are keyed by the context key of their values.
type ContextViews struct {
	keys   valueobjects.KeyFactory
	active map[valueobjects.Key]struct{}
}

// NewContextViews creates an empty toggle set
func NewContextViews(keys valueobjects.KeyFactory) *ContextViews {
	return &ContextViews{keys: keys, active: make(map[valueobjects.Key]struct{})}
}

// Toggle flips the context view of the thought at ctx
func (v *ContextViews) Toggle(ctx valueobjects.Context) {
	key := v.keys.Context(ctx)
	if _, ok := v.active[key]; ok {
		delete(v.active, key)
		return
	}
	v.active[key] = struct{}{}
}

// Reset turns every context view off
func (v *ContextViews) Reset() {
	v.active = make(map[valueobjects.Key]struct{})
}

// IsActive reports whether the thought at ctx shows its contexts. A nil set has no
// active views.
func (v *ContextViews) IsActive(ctx valueobjects.Context) bool {
	if v == nil || len(ctx) == 0 {
		return false
	}
	_, ok := v.active[v.keys.Context(ctx)]
	return ok
}

// Location is where a ranked path points in the graph: the real context holding the
// thought and the thought itself
type Location struct {
	Context valueobjects.Context
	Value   string
	Rank    float64
}

// Path returns the ranked path of the location without any context views
func (l Location) Path(g aggregates.Reader) valueobjects.Path {
	path, ok := ContextToPath(g, l.Context)
	if !ok {
		path = contextWithZeroRanks(l.Context)
	}
	return path.Append(valueobjects.PathSegment{Value: l.Value, Rank: l.Rank})
}

// ContextResolver translates between ranked paths and the value-only contexts used as
// index keys, applying context views along the way
type ContextResolver struct {
	views *ContextViews
}

// NewContextResolver creates a resolver. A nil views set resolves plain paths.
func NewContextResolver(views *ContextViews) *ContextResolver {
	return &ContextResolver{views: views}
}

// ResolveContext returns the context whose children are listed at path. The empty path
// resolves to the root context.
//
// A segment that follows a toggled segment is one of the toggled thought's contexts, so
// the walk jumps to that context with the toggled thought appended.
func (r *ContextResolver) ResolveContext(g aggregates.Reader, path valueobjects.Path) (valueobjects.Context, error) {
	ctx := valueobjects.Context{}
	for i, seg := range path {
		if i > 0 && r.views.IsActive(path[:i].Context()) {
			prev := path[i-1].Value
			ref, ok := findContextRef(g, prev, seg)
			if !ok {
				return nil, pkgerrors.NewResolutionError(path[:i+1].Context().String())
			}
			ctx = ref.Context.Append(prev)
			continue
		}
		ctx = ctx.Append(seg.Value)
	}
	return ctx, nil
}

// Locate resolves the thought a non-empty path points at
func (r *ContextResolver) Locate(g aggregates.Reader, path valueobjects.Path) (Location, error) {
	if path.IsRoot() {
		return Location{}, pkgerrors.NewResolutionError("")
	}
	parentPath := path.Parent()
	head := path.Head()

	// a thought listed in a context view stands for the toggled thought in that context
	if r.views.IsActive(parentPath.Context()) {
		toggled := parentPath.Head().Value
		ref, ok := findContextRef(g, toggled, head)
		if !ok {
			return Location{}, pkgerrors.NewResolutionError(path.Context().String())
		}
		return Location{Context: ref.Context, Value: toggled, Rank: ref.Rank}, nil
	}

	parent, err := r.ResolveContext(g, parentPath)
	if err != nil {
		return Location{}, err
	}
	entry, ok := g.GetContextEntry(parent)
	if !ok {
		return Location{}, pkgerrors.NewResolutionError(path.Context().String())
	}
	child, ok := entry.Child(head.Value)
	if !ok {
		return Location{}, pkgerrors.NewResolutionError(path.Context().String())
	}
	return Location{Context: parent, Value: child.Value, Rank: child.Rank}, nil
}

// IsContextView reports whether the thought at path lists its contexts
func (r *ContextResolver) IsContextView(path valueobjects.Path) bool {
	return r.views.IsActive(path.Context())
}

// Children lists what is displayed below path. When the last segment is toggled the
// entries are the parent contexts of that thought, each shown by its last value.
func (r *ContextResolver) Children(g aggregates.Reader, path valueobjects.Path) ([]entities.ChildRef, error) {
	if !path.IsRoot() && r.views.IsActive(path.Context()) {
		lexeme, ok := g.GetLexeme(path.Head().Value)
		if !ok {
			return []entities.ChildRef{}, nil
		}
		children := make([]entities.ChildRef, 0, len(lexeme.Contexts))
		for _, ref := range lexeme.Contexts {
			children = append(children, entities.ChildRef{Value: contextLabel(ref.Context), Rank: ref.Rank})
		}
		entities.SortChildren(children)
		return children, nil
	}

	ctx, err := r.ResolveContext(g, path)
	if err != nil {
		return nil, err
	}
	return g.Children(ctx), nil
}

// ContextToPath ranks every value of ctx by looking it up in its parent. It fails when
// any level is missing from the graph.
func ContextToPath(g aggregates.Reader, ctx valueobjects.Context) (valueobjects.Path, bool) {
	path := make(valueobjects.Path, 0, len(ctx))
	for i, value := range ctx {
		entry, ok := g.GetContextEntry(ctx[:i])
		if !ok {
			return nil, false
		}
		child, ok := entry.Child(value)
		if !ok {
			return nil, false
		}
		path = append(path, valueobjects.PathSegment{Value: child.Value, Rank: child.Rank})
	}
	return path, true
}

// PathToContext strips the ranks of a plain path
func PathToContext(path valueobjects.Path) valueobjects.Context {
	return path.Context()
}

// findContextRef finds the occurrence of value whose context ends in seg.Value, matching
// the rank first
func findContextRef(g aggregates.Reader, value string, seg valueobjects.PathSegment) (entities.ContextRef, bool) {
	lexeme, ok := g.GetLexeme(value)
	if !ok {
		return entities.ContextRef{}, false
	}
	for _, ref := range lexeme.Contexts {
		if contextLabel(ref.Context) == seg.Value && ref.Rank == seg.Rank {
			return ref, true
		}
	}
	for _, ref := range lexeme.Contexts {
		if contextLabel(ref.Context) == seg.Value {
			return ref, true
		}
	}
	return entities.ContextRef{}, false
}

func contextLabel(ctx valueobjects.Context) string {
	if ctx.IsRoot() {
		return valueobjects.RootToken
	}
	return ctx.Head()
}

func contextWithZeroRanks(ctx valueobjects.Context) valueobjects.Path {
	path := make(valueobjects.Path, len(ctx))
	for i, value := range ctx {
		path[i] = valueobjects.PathSegment{Value: value}
	}
	return path
}
