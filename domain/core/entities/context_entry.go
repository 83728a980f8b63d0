package entities

import (
	"sort"
	"time"

	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// ChildRef is one child of a context entry
type ChildRef struct {
	Value string  `json:"value" dynamodbav:"value"`
	Rank  float64 `json:"rank" dynamodbav:"rank"`
}

// ContextEntry is the context-indexed record listing the children of one context in rank
// order. Like Lexeme it is copy-on-write.
type ContextEntry struct {
	Context     valueobjects.Context `json:"context" dynamodbav:"context"`
	Children    []ChildRef           `json:"children" dynamodbav:"children"`
	LastUpdated time.Time            `json:"lastUpdated" dynamodbav:"lastUpdated"`
}

// NewContextEntry creates an entry with no children
func NewContextEntry(ctx valueobjects.Context, now time.Time) *ContextEntry {
	return &ContextEntry{
		Context:     valueobjects.NewContext(ctx...),
		Children:    []ChildRef{},
		LastUpdated: now,
	}
}

// NewContextEntryTombstone creates the remote marker of a deleted context entry
func NewContextEntryTombstone(now time.Time) *ContextEntry {
	return NewContextEntry(valueobjects.Context{}, now)
}

// Clone returns a deep copy. Clone of nil is nil.
func (e *ContextEntry) Clone() *ContextEntry {
	if e == nil {
		return nil
	}
	children := make([]ChildRef, len(e.Children))
	copy(children, e.Children)
	return &ContextEntry{
		Context:     valueobjects.NewContext(e.Context...),
		Children:    children,
		LastUpdated: e.LastUpdated,
	}
}

// Child returns the child with value
func (e *ContextEntry) Child(value string) (ChildRef, bool) {
	if i := e.indexOf(value); i >= 0 {
		return e.Children[i], true
	}
	return ChildRef{}, false
}

// WithChild returns a copy with child inserted, overwriting any child with the same value,
// and children re-sorted by rank
func (e *ContextEntry) WithChild(child ChildRef, now time.Time) *ContextEntry {
	out := e.Clone()
	if i := out.indexOf(child.Value); i >= 0 {
		out.Children[i] = child
	} else {
		out.Children = append(out.Children, child)
	}
	SortChildren(out.Children)
	out.LastUpdated = now
	return out
}

// WithoutChild returns a copy with the child holding value removed
func (e *ContextEntry) WithoutChild(value string, now time.Time) *ContextEntry {
	out := e.Clone()
	if i := out.indexOf(value); i >= 0 {
		out.Children = append(out.Children[:i], out.Children[i+1:]...)
	}
	out.LastUpdated = now
	return out
}

// IsEmpty reports whether the entry has no children
func (e *ContextEntry) IsEmpty() bool {
	return e == nil || len(e.Children) == 0
}

// IsNewerThan reports whether e was written strictly after other
func (e *ContextEntry) IsNewerThan(other *ContextEntry) bool {
	if other == nil {
		return true
	}
	return e.LastUpdated.After(other.LastUpdated)
}

func (e *ContextEntry) indexOf(value string) int {
	if e == nil {
		return -1
	}
	for i, child := range e.Children {
		if child.Value == value {
			return i
		}
	}
	return -1
}

// SortChildren orders children by rank. Equal ranks keep their relative order.
func SortChildren(children []ChildRef) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Rank < children[j].Rank
	})
}
