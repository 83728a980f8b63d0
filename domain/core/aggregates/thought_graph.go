package aggregates

import (
	"time"

	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Reader is the read side shared by a committed graph and an open transaction
type Reader interface {
	GetLexeme(value string) (*entities.Lexeme, bool)
	GetContextEntry(ctx valueobjects.Context) (*entities.ContextEntry, bool)
	Children(ctx valueobjects.Context) []entities.ChildRef
	Keys() valueobjects.KeyFactory
}

// ThoughtGraph is the aggregate owning both indexes: thoughtIndex (value key to Lexeme)
// and contextIndex (context key to ContextEntry).
//
// A ThoughtGraph is immutable. Every mutation goes through a Tx opened with Begin, and
// Commit returns a new graph plus the Delta of changed keys. Callers therefore never see
// one index updated without the other. Records returned by the getters are shared with
// the graph and must not be modified.
type ThoughtGraph struct {
	keys     valueobjects.KeyFactory
	thoughts map[valueobjects.Key]*entities.Lexeme
	contexts map[valueobjects.Key]*entities.ContextEntry
}

// NewThoughtGraph creates an empty graph keyed by keys
func NewThoughtGraph(keys valueobjects.KeyFactory) *ThoughtGraph {
	return &ThoughtGraph{
		keys:     keys,
		thoughts: make(map[valueobjects.Key]*entities.Lexeme),
		contexts: make(map[valueobjects.Key]*entities.ContextEntry),
	}
}

// Keys returns the key factory the graph was built with
func (g *ThoughtGraph) Keys() valueobjects.KeyFactory {
	return g.keys
}

// GetLexeme returns the Lexeme for value
func (g *ThoughtGraph) GetLexeme(value string) (*entities.Lexeme, bool) {
	lexeme, ok := g.thoughts[g.keys.Thought(value)]
	return lexeme, ok
}

// GetContextEntry returns the entry listing the children of ctx
func (g *ThoughtGraph) GetContextEntry(ctx valueobjects.Context) (*entities.ContextEntry, bool) {
	entry, ok := g.contexts[g.keys.Context(ctx)]
	return entry, ok
}

// Children returns the children of ctx in rank order. An unknown context has no children.
func (g *ThoughtGraph) Children(ctx valueobjects.Context) []entities.ChildRef {
	entry, _ := g.GetContextEntry(ctx)
	return childrenOf(entry)
}

// LexemeByKey returns the Lexeme stored under key
func (g *ThoughtGraph) LexemeByKey(key valueobjects.Key) (*entities.Lexeme, bool) {
	lexeme, ok := g.thoughts[key]
	return lexeme, ok
}

// ContextEntryByKey returns the entry stored under key
func (g *ThoughtGraph) ContextEntryByKey(key valueobjects.Key) (*entities.ContextEntry, bool) {
	entry, ok := g.contexts[key]
	return entry, ok
}

// ThoughtCount returns the number of Lexemes
func (g *ThoughtGraph) ThoughtCount() int {
	return len(g.thoughts)
}

// ContextCount returns the number of context entries
func (g *ThoughtGraph) ContextCount() int {
	return len(g.contexts)
}

// IsEmpty reports whether the graph has no records
func (g *ThoughtGraph) IsEmpty() bool {
	return len(g.thoughts) == 0 && len(g.contexts) == 0
}

// Snapshot returns the whole graph as a Delta, used to push full state to an empty remote
func (g *ThoughtGraph) Snapshot() Delta {
	delta := NewDelta()
	for key, lexeme := range g.thoughts {
		delta.ThoughtIndexUpdates[key] = lexeme
	}
	for key, entry := range g.contexts {
		delta.ContextIndexUpdates[key] = entry
	}
	return delta
}

// Begin opens a transaction whose writes are stamped with now
func (g *ThoughtGraph) Begin(now time.Time) *Tx {
	return &Tx{
		base:     g,
		now:      now,
		thoughts: make(map[valueobjects.Key]*entities.Lexeme),
		contexts: make(map[valueobjects.Key]*entities.ContextEntry),
	}
}

// AddChildToContext is the single-operation form of Tx.AddChildToContext
func (g *ThoughtGraph) AddChildToContext(ctx valueobjects.Context, child entities.ChildRef, now time.Time) (*ThoughtGraph, Delta) {
	tx := g.Begin(now)
	tx.AddChildToContext(ctx, child)
	return tx.Commit()
}

// RemoveChildFromContext is the single-operation form of Tx.RemoveChildFromContext
func (g *ThoughtGraph) RemoveChildFromContext(ctx valueobjects.Context, value string, now time.Time) (*ThoughtGraph, Delta) {
	tx := g.Begin(now)
	tx.RemoveChildFromContext(ctx, value)
	return tx.Commit()
}

// RenameValueInContext is the single-operation form of Tx.RenameValueInContext
func (g *ThoughtGraph) RenameValueInContext(ctx valueobjects.Context, oldValue, newValue string, now time.Time) (*ThoughtGraph, Delta) {
	tx := g.Begin(now)
	tx.RenameValueInContext(ctx, oldValue, newValue)
	return tx.Commit()
}

func childrenOf(entry *entities.ContextEntry) []entities.ChildRef {
	if entry == nil {
		return []entities.ChildRef{}
	}
	children := make([]entities.ChildRef, len(entry.Children))
	copy(children, entry.Children)
	entities.SortChildren(children)
	return children
}
