package aggregates

import (
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Meta attributes recognised by the policy checks
const (
	AttrReadonly  = "=readonly"
	AttrImmovable = "=immovable"
	AttrSort      = "=sort"

	SortAlphabetical = "Alphabetical"
	SortNone         = "None"

	// SettingsValue is the child of the meta root holding one context per setting
	SettingsValue = "Settings"

	// SettingDataIntegrityCheck turns on repair of remote payloads when set to SettingOn
	SettingDataIntegrityCheck = "Data Integrity Check"
	SettingOn                 = "On"
)

// SettingsContext returns the context listing the value of a setting
func SettingsContext(name ...string) valueobjects.Context {
	return valueobjects.NewContext(valueobjects.EMToken, SettingsValue).Append(name...)
}

// HasChild reports whether ctx has a direct child with value
func HasChild(g Reader, ctx valueobjects.Context, value string) bool {
	entry, ok := g.GetContextEntry(ctx)
	if !ok {
		return false
	}
	_, ok = entry.Child(value)
	return ok
}

// HasAttribute reports whether the thought at ctx carries the meta attribute attr
func HasAttribute(g Reader, ctx valueobjects.Context, attr string) bool {
	return HasChild(g, ctx, attr)
}

// VisibleChildren returns the children of ctx without meta attributes
func VisibleChildren(g Reader, ctx valueobjects.Context) []entities.ChildRef {
	children := g.Children(ctx)
	visible := children[:0]
	for _, child := range children {
		if !entities.IsFunction(child.Value) {
			visible = append(visible, child)
		}
	}
	return visible
}

// PrevSibling returns the sibling ranked immediately before value in ctx
func PrevSibling(g Reader, ctx valueobjects.Context, value string, rank float64) (entities.ChildRef, bool) {
	children := g.Children(ctx)
	i := indexOfChild(children, valueobjects.PathSegment{Value: value, Rank: rank})
	if i <= 0 {
		return entities.ChildRef{}, false
	}
	return children[i-1], true
}

// NextSibling returns the sibling ranked immediately after value in ctx
func NextSibling(g Reader, ctx valueobjects.Context, value string, rank float64) (entities.ChildRef, bool) {
	children := g.Children(ctx)
	i := indexOfChild(children, valueobjects.PathSegment{Value: value, Rank: rank})
	if i < 0 || i == len(children)-1 {
		return entities.ChildRef{}, false
	}
	return children[i+1], true
}

// ThoughtAfter returns the path of the next uncle of the thought at path: the sibling
// that follows its parent. Thoughts in the root context have no uncle.
func ThoughtAfter(g Reader, path valueobjects.Path) (valueobjects.Path, bool) {
	if len(path) < 2 {
		return nil, false
	}
	parent := path.Parent()
	head := parent.Head()
	uncle, ok := NextSibling(g, parent.Parent().Context(), head.Value, head.Rank)
	if !ok {
		return nil, false
	}
	return parent.Parent().Append(valueobjects.PathSegment{Value: uncle.Value, Rank: uncle.Rank}), true
}

// ThoughtBefore returns the path of the previous uncle of the thought at path
func ThoughtBefore(g Reader, path valueobjects.Path) (valueobjects.Path, bool) {
	if len(path) < 2 {
		return nil, false
	}
	parent := path.Parent()
	head := parent.Head()
	uncle, ok := PrevSibling(g, parent.Parent().Context(), head.Value, head.Rank)
	if !ok {
		return nil, false
	}
	return parent.Parent().Append(valueobjects.PathSegment{Value: uncle.Value, Rank: uncle.Rank}), true
}

// GetSetting returns the first non-meta child of the setting context
func GetSetting(g Reader, name ...string) (string, bool) {
	return firstValue(g, SettingsContext(name...))
}

// SortPreference returns the value of the =sort attribute of ctx, or SortNone
func SortPreference(g Reader, ctx valueobjects.Context) string {
	if value, ok := firstValue(g, ctx.Append(AttrSort)); ok {
		return value
	}
	return SortNone
}

// Ellipsize shortens value to n runes followed by an ellipsis
func Ellipsize(value string, n int) string {
	runes := []rune(value)
	if n <= 0 || len(runes) <= n {
		return value
	}
	return string(runes[:n]) + "..."
}

func firstValue(g Reader, ctx valueobjects.Context) (string, bool) {
	for _, child := range g.Children(ctx) {
		if !entities.IsFunction(child.Value) {
			return child.Value, true
		}
	}
	return "", false
}
