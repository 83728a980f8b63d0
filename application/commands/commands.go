package commands

import (
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Command is a closed set of graph mutations. Only the types in this package implement it,
// and Reducer.Reduce matches every one of them.
type Command interface {
	// Name identifies the command in logs and metrics
	Name() string
	command()
}

// Create adds a new thought next to, or inside, the thought at At.
// An empty At creates in the root context.
type Create struct {
	At                  valueobjects.Path `json:"at"`
	Value               string            `json:"value" validate:"max=10000"`
	InsertBefore        bool              `json:"insertBefore"`
	InsertNewSubthought bool              `json:"insertNewSubthought"`
	Rank                *float64          `json:"rank,omitempty"`
}

// Edit changes the value of the thought at Path from OldValue to NewValue
type Edit struct {
	Path     valueobjects.Path `json:"path" validate:"required,min=1"`
	OldValue string            `json:"oldValue" validate:"max=10000"`
	NewValue string            `json:"newValue" validate:"max=10000"`
}

// Move relocates the thought at From. The head of To carries the destination rank.
type Move struct {
	From valueobjects.Path `json:"from" validate:"required,min=1"`
	To   valueobjects.Path `json:"to" validate:"required,min=1"`
}

// Delete removes the thought at Path and its whole subtree
type Delete struct {
	Path valueobjects.Path `json:"path" validate:"required,min=1"`
}

// BumpDown clears the text of the thought at Path and pushes its value down as a new
// first child
type BumpDown struct {
	Path valueobjects.Path `json:"path" validate:"required,min=1"`
}

// MoveDown swaps the thought at Path with its next sibling
type MoveDown struct {
	Path valueobjects.Path `json:"path" validate:"required,min=1"`
}

// MoveUp swaps the thought at Path with its previous sibling
type MoveUp struct {
	Path valueobjects.Path `json:"path" validate:"required,min=1"`
}

// SubCategorize wraps the thought at Path in a new empty parent
type SubCategorize struct {
	Path valueobjects.Path `json:"path" validate:"required,min=1"`
}

// ImportText parses an indented outline and appends it under At
type ImportText struct {
	At   valueobjects.Path `json:"at"`
	Text string            `json:"text" validate:"required"`
}

// MergeOrigin tells where merged records come from
type MergeOrigin string

const (
	// OriginRemote records arrive from another client. They are persisted locally only.
	OriginRemote MergeOrigin = "remote"

	// OriginLocal records are read back from the local store at startup
	OriginLocal MergeOrigin = "local"
)

// MergeRemote applies records from a snapshot with last-write-wins per entity
type MergeRemote struct {
	Origin       MergeOrigin
	ThoughtIndex map[valueobjects.Key]*entities.Lexeme
	ContextIndex map[valueobjects.Key]*entities.ContextEntry
}

// Clear drops every thought
type Clear struct{}

func (Create) Name() string        { return "create" }
func (Edit) Name() string          { return "edit" }
func (Move) Name() string          { return "move" }
func (Delete) Name() string        { return "delete" }
func (BumpDown) Name() string      { return "bump_down" }
func (MoveDown) Name() string      { return "move_down" }
func (MoveUp) Name() string        { return "move_up" }
func (SubCategorize) Name() string { return "sub_categorize" }
func (ImportText) Name() string    { return "import_text" }
func (MergeRemote) Name() string   { return "merge_remote" }
func (Clear) Name() string         { return "clear" }

func (Create) command()        {}
func (Edit) command()          {}
func (Move) command()          {}
func (Delete) command()        {}
func (BumpDown) command()      {}
func (MoveDown) command()      {}
func (MoveUp) command()        {}
func (SubCategorize) command() {}
func (ImportText) command()    {}
func (MergeRemote) command()   {}
func (Clear) command()         {}
