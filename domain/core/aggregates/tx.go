package aggregates

import (
	"maps"
	"time"

	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/pkg/errors"
)

// Tx is a copy-on-write overlay over a ThoughtGraph. Touched keys live in the overlay
// maps, where a nil record marks a deletion. Only the composite operations below write to
// the overlay, so Lexeme.Contexts and ContextEntry.Children are always updated together.
//
// A Tx is not safe for concurrent use.
type Tx struct {
	base     *ThoughtGraph
	now      time.Time
	thoughts map[valueobjects.Key]*entities.Lexeme
	contexts map[valueobjects.Key]*entities.ContextEntry
}

// Keys returns the key factory of the underlying graph
func (t *Tx) Keys() valueobjects.KeyFactory {
	return t.base.keys
}

// Now returns the timestamp stamped on every write in the transaction
func (t *Tx) Now() time.Time {
	return t.now
}

// GetLexeme returns the Lexeme for value as seen by the transaction
func (t *Tx) GetLexeme(value string) (*entities.Lexeme, bool) {
	lexeme := t.lexemeByKey(t.base.keys.Thought(value))
	return lexeme, lexeme != nil
}

// GetContextEntry returns the entry for ctx as seen by the transaction
func (t *Tx) GetContextEntry(ctx valueobjects.Context) (*entities.ContextEntry, bool) {
	entry := t.contextByKey(t.base.keys.Context(ctx))
	return entry, entry != nil
}

// Children returns the children of ctx in rank order
func (t *Tx) Children(ctx valueobjects.Context) []entities.ChildRef {
	entry, _ := t.GetContextEntry(ctx)
	return childrenOf(entry)
}

// AddChildToContext inserts child under ctx, overwriting a child with the same value, and
// records the matching ContextRef on the child's Lexeme. Missing records are created.
func (t *Tx) AddChildToContext(ctx valueobjects.Context, child entities.ChildRef) {
	contextKey := t.base.keys.Context(ctx)
	entry := t.contextByKey(contextKey)
	if entry == nil {
		entry = entities.NewContextEntry(ctx, t.now)
	}
	t.putContext(contextKey, entry.WithChild(child, t.now))

	thoughtKey := t.base.keys.Thought(child.Value)
	lexeme := t.lexemeByKey(thoughtKey)
	if lexeme == nil {
		lexeme = entities.NewLexeme(child.Value, t.now)
	}
	t.putLexeme(thoughtKey, lexeme.WithContext(entities.ContextRef{Context: ctx, Rank: child.Rank}, t.now))
}

// RemoveChildFromContext removes value from ctx together with its ContextRef. An entry left
// without children and a Lexeme left without contexts are deleted. Descendants are not
// touched; see RemoveSubtree. It reports whether anything changed.
func (t *Tx) RemoveChildFromContext(ctx valueobjects.Context, value string) bool {
	changed := false

	contextKey := t.base.keys.Context(ctx)
	if entry := t.contextByKey(contextKey); entry != nil {
		if _, ok := entry.Child(value); ok {
			t.putContext(contextKey, entry.WithoutChild(value, t.now))
			changed = true
		}
	}

	thoughtKey := t.base.keys.Thought(value)
	if lexeme := t.lexemeByKey(thoughtKey); lexeme.HasContext(ctx) {
		t.putLexeme(thoughtKey, lexeme.WithoutContext(ctx, t.now))
		changed = true
	}

	return changed
}

// RenameValueInContext replaces oldValue with newValue under ctx, keeping its rank. The
// ContextRef moves from the old Lexeme to the new one. Descendants are not rekeyed; see
// RekeySubtree.
func (t *Tx) RenameValueInContext(ctx valueobjects.Context, oldValue, newValue string) bool {
	if oldValue == newValue {
		return false
	}
	entry, ok := t.GetContextEntry(ctx)
	if !ok {
		return false
	}
	child, ok := entry.Child(oldValue)
	if !ok {
		return false
	}
	t.RemoveChildFromContext(ctx, oldValue)
	t.AddChildToContext(ctx, entities.ChildRef{Value: newValue, Rank: child.Rank})
	return true
}

// RemoveSubtree removes value from ctx and every descendant below it.
//
// Each recursive call descends into a strictly longer context that has an entry. There are
// finitely many entries, so the walk terminates.
func (t *Tx) RemoveSubtree(ctx valueobjects.Context, value string) bool {
	childCtx := ctx.Append(value)
	for _, child := range t.Children(childCtx) {
		t.RemoveSubtree(childCtx, child.Value)
	}
	return t.RemoveChildFromContext(ctx, value)
}

// RekeySubtree moves every descendant of from so it lives under to, keeping values and
// ranks. Children merge into an existing entry at to. Used when a thought is moved or its
// value is edited, since the contexts of everything below it change.
//
// The walk mirrors RemoveSubtree and terminates for the same reason. Moving a context into
// its own subtree would never terminate and is rejected.
func (t *Tx) RekeySubtree(from, to valueobjects.Context) error {
	if from.Equals(to) {
		return nil
	}
	if to.HasPrefix(from) {
		return errors.ErrMoveIntoSelf(from.Head())
	}
	for _, child := range t.Children(from) {
		if err := t.RekeySubtree(from.Append(child.Value), to.Append(child.Value)); err != nil {
			return err
		}
		t.AddChildToContext(to, child)
		t.RemoveChildFromContext(from, child.Value)
	}
	return nil
}

// MergeLexeme applies a remote Lexeme when it is strictly newer than the local one. A
// remote record without contexts is a tombstone and deletes the local Lexeme. The remote
// timestamp is kept. It reports whether the remote record was applied.
func (t *Tx) MergeLexeme(key valueobjects.Key, remote *entities.Lexeme) bool {
	if remote == nil || key.IsZero() {
		return false
	}
	if !remote.IsNewerThan(t.lexemeByKey(key)) {
		return false
	}
	if remote.IsOrphaned() {
		t.thoughts[key] = nil
		return true
	}
	t.thoughts[key] = remote.Clone()
	return true
}

// MergeContextEntry is the context-index counterpart of MergeLexeme
func (t *Tx) MergeContextEntry(key valueobjects.Key, remote *entities.ContextEntry) bool {
	if remote == nil || key.IsZero() {
		return false
	}
	if !remote.IsNewerThan(t.contextByKey(key)) {
		return false
	}
	if remote.IsEmpty() {
		t.contexts[key] = nil
		return true
	}
	merged := remote.Clone()
	entities.SortChildren(merged.Children)
	t.contexts[key] = merged
	return true
}

// Commit returns the resulting graph and the delta of keys that differ from the base.
// A key created and deleted inside the same transaction is not reported.
func (t *Tx) Commit() (*ThoughtGraph, Delta) {
	delta := NewDelta()
	delta.Timestamp = t.now
	if len(t.thoughts) == 0 && len(t.contexts) == 0 {
		return t.base, delta
	}

	thoughts := maps.Clone(t.base.thoughts)
	for key, lexeme := range t.thoughts {
		if lexeme == nil {
			if _, existed := thoughts[key]; !existed {
				continue
			}
			delete(thoughts, key)
		} else {
			thoughts[key] = lexeme
		}
		delta.ThoughtIndexUpdates[key] = lexeme
	}

	contexts := maps.Clone(t.base.contexts)
	for key, entry := range t.contexts {
		if entry == nil {
			if _, existed := contexts[key]; !existed {
				continue
			}
			delete(contexts, key)
		} else {
			contexts[key] = entry
		}
		delta.ContextIndexUpdates[key] = entry
	}

	return &ThoughtGraph{keys: t.base.keys, thoughts: thoughts, contexts: contexts}, delta
}

func (t *Tx) lexemeByKey(key valueobjects.Key) *entities.Lexeme {
	if lexeme, ok := t.thoughts[key]; ok {
		return lexeme
	}
	return t.base.thoughts[key]
}

func (t *Tx) contextByKey(key valueobjects.Key) *entities.ContextEntry {
	if entry, ok := t.contexts[key]; ok {
		return entry
	}
	return t.base.contexts[key]
}

func (t *Tx) putLexeme(key valueobjects.Key, lexeme *entities.Lexeme) {
	if lexeme.IsOrphaned() {
		t.thoughts[key] = nil
		return
	}
	t.thoughts[key] = lexeme
}

func (t *Tx) putContext(key valueobjects.Key, entry *entities.ContextEntry) {
	if entry.IsEmpty() {
		t.contexts[key] = nil
		return
	}
	t.contexts[key] = entry
}
