package commands

import (
	"fmt"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/domain/services"
)

// AttrUnextendable forbids adding subthoughts
const AttrUnextendable = "=unextendable"

// moveAlert returns the message explaining why the thought at loc cannot be moved, or ""
// when the move is allowed. sortCtx is the context whose sort lock applies: the parent for
// a swap, the destination for a move.
func (r *Reducer) moveAlert(g aggregates.Reader, loc services.Location, sortCtx valueobjects.Context) string {
	thought := loc.Context.Append(loc.Value)

	switch {
	case aggregates.SortPreference(g, sortCtx) == aggregates.SortAlphabetical:
		return fmt.Sprintf("Cannot move subthoughts of \"%s\" while sort is enabled.", r.ellipsize(sortCtx.Head()))
	case aggregates.HasAttribute(g, thought, aggregates.AttrReadonly):
		return fmt.Sprintf("\"%s\" is read-only and cannot be moved.", r.ellipsize(loc.Value))
	case aggregates.HasAttribute(g, thought, aggregates.AttrImmovable):
		return fmt.Sprintf("\"%s\" is immovable.", r.ellipsize(loc.Value))
	case aggregates.HasAttribute(g, loc.Context, aggregates.AttrReadonly):
		return fmt.Sprintf("Subthoughts of \"%s\" are read-only and cannot be moved.", r.ellipsize(loc.Context.Head()))
	case aggregates.HasAttribute(g, loc.Context, aggregates.AttrImmovable):
		return fmt.Sprintf("Subthoughts of \"%s\" are immovable.", r.ellipsize(loc.Context.Head()))
	}
	return ""
}

func (r *Reducer) deleteAlert(g aggregates.Reader, loc services.Location) string {
	switch {
	case aggregates.HasAttribute(g, loc.Context.Append(loc.Value), aggregates.AttrReadonly):
		return fmt.Sprintf("\"%s\" is read-only and cannot be deleted.", r.ellipsize(loc.Value))
	case aggregates.HasAttribute(g, loc.Context, aggregates.AttrReadonly):
		return fmt.Sprintf("Subthoughts of \"%s\" are read-only and cannot be deleted.", r.ellipsize(loc.Context.Head()))
	}
	return ""
}

func (r *Reducer) subCategorizeAlert(g aggregates.Reader, loc services.Location) string {
	switch {
	case aggregates.HasAttribute(g, loc.Context, aggregates.AttrReadonly):
		return fmt.Sprintf("\"%s\" is read-only so \"%s\" may not be subcategorized.", r.ellipsize(loc.Context.Head()), r.ellipsize(loc.Value))
	case aggregates.HasAttribute(g, loc.Context, AttrUnextendable):
		return fmt.Sprintf("\"%s\" is unextendable so \"%s\" may not be subcategorized.", r.ellipsize(loc.Context.Head()), r.ellipsize(loc.Value))
	}
	return ""
}
