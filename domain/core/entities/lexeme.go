package entities

import (
	"strings"
	"time"

	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Never is the timestamp given to records that any other write must win over, such as
// the initial settings imported on logout.
var Never = time.Unix(0, 0).UTC()

// IsFunction reports whether value is a meta attribute such as =readonly or =sort.
// Meta thoughts are hidden from the visible outline.
func IsFunction(value string) bool {
	return strings.HasPrefix(value, "=")
}

// ContextRef is one occurrence of a Lexeme: the parent context it appears in and its
// rank among that context's children.
type ContextRef struct {
	Context valueobjects.Context `json:"context" dynamodbav:"context"`
	Rank    float64              `json:"rank" dynamodbav:"rank"`
}

// Lexeme is the value-indexed record aggregating every context a value appears in.
// A Lexeme is treated as immutable once it is reachable from a graph: the With* methods
// return modified copies.
type Lexeme struct {
	Value       string       `json:"value" dynamodbav:"value"`
	Contexts    []ContextRef `json:"contexts" dynamodbav:"contexts"`
	LastUpdated time.Time    `json:"lastUpdated" dynamodbav:"lastUpdated"`
}

// NewLexeme creates a Lexeme with no contexts
func NewLexeme(value string, now time.Time) *Lexeme {
	return &Lexeme{
		Value:       value,
		Contexts:    []ContextRef{},
		LastUpdated: now,
	}
}

// NewLexemeTombstone creates the remote marker of a deleted Lexeme. It has no contexts, so
// a receiving client deletes its copy when the tombstone wins last-write-wins.
func NewLexemeTombstone(now time.Time) *Lexeme {
	return NewLexeme("", now)
}

// Clone returns a deep copy. Clone of nil is nil.
func (l *Lexeme) Clone() *Lexeme {
	if l == nil {
		return nil
	}
	contexts := make([]ContextRef, len(l.Contexts))
	for i, cx := range l.Contexts {
		contexts[i] = ContextRef{Context: valueobjects.NewContext(cx.Context...), Rank: cx.Rank}
	}
	return &Lexeme{
		Value:       l.Value,
		Contexts:    contexts,
		LastUpdated: l.LastUpdated,
	}
}

// FindContext returns the occurrence of the Lexeme in ctx
func (l *Lexeme) FindContext(ctx valueobjects.Context) (ContextRef, bool) {
	if i := l.indexOf(ctx); i >= 0 {
		return l.Contexts[i], true
	}
	return ContextRef{}, false
}

// HasContext reports whether the Lexeme appears in ctx
func (l *Lexeme) HasContext(ctx valueobjects.Context) bool {
	return l.indexOf(ctx) >= 0
}

// WithContext returns a copy with ref added, replacing any occurrence in the same context
func (l *Lexeme) WithContext(ref ContextRef, now time.Time) *Lexeme {
	out := l.Clone()
	ref = ContextRef{Context: valueobjects.NewContext(ref.Context...), Rank: ref.Rank}
	if i := out.indexOf(ref.Context); i >= 0 {
		out.Contexts[i] = ref
	} else {
		out.Contexts = append(out.Contexts, ref)
	}
	out.LastUpdated = now
	return out
}

// WithoutContext returns a copy with the occurrence in ctx removed
func (l *Lexeme) WithoutContext(ctx valueobjects.Context, now time.Time) *Lexeme {
	out := l.Clone()
	if i := out.indexOf(ctx); i >= 0 {
		out.Contexts = append(out.Contexts[:i], out.Contexts[i+1:]...)
	}
	out.LastUpdated = now
	return out
}

// IsOrphaned reports whether the Lexeme no longer appears anywhere
func (l *Lexeme) IsOrphaned() bool {
	return l == nil || len(l.Contexts) == 0
}

// IsNewerThan reports whether l was written strictly after other. Any record is newer
// than an absent one.
func (l *Lexeme) IsNewerThan(other *Lexeme) bool {
	if other == nil {
		return true
	}
	return l.LastUpdated.After(other.LastUpdated)
}

func (l *Lexeme) indexOf(ctx valueobjects.Context) int {
	if l == nil {
		return -1
	}
	for i, cx := range l.Contexts {
		if cx.Context.Equals(ctx) {
			return i
		}
	}
	return -1
}
