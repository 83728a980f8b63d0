package commands

import (
	"fmt"
	"time"

	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/validators"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/domain/services"
)

// Result is the outcome of one reduction. Graph is the new state; Delta lists exactly the
// keys that changed. A rejected command leaves Graph unchanged and sets Alert.
type Result struct {
	Graph  *aggregates.ThoughtGraph
	Delta  aggregates.Delta
	Alert  string
	Cursor valueobjects.Path
}

// Changed reports whether the command modified the graph
func (r Result) Changed() bool {
	return !r.Delta.IsEmpty()
}

// Reducer applies commands to a thought graph. Reductions are pure: no I/O, and the
// input graph is never modified.
type Reducer struct {
	ranker      aggregates.Ranker
	validator   *validators.ThoughtValidator
	resolver    *services.ContextResolver
	ellipsizeAt int
	maxEntries  int
}

// NewReducer creates a reducer. views may be nil when context views are not used.
func NewReducer(cfg *config.DomainConfig, views *services.ContextViews) *Reducer {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Reducer{
		ranker:      aggregates.NewRanker(cfg.RankIncrement),
		validator:   validators.NewThoughtValidator(cfg),
		resolver:    services.NewContextResolver(views),
		ellipsizeAt: cfg.EllipsizeLength,
		maxEntries:  cfg.MaxImportEntries,
	}
}

// Ranker returns the rank calculator used by the reducer
func (r *Reducer) Ranker() aggregates.Ranker {
	return r.ranker
}

// Resolver returns the path resolver used by the reducer
func (r *Reducer) Resolver() *services.ContextResolver {
	return r.resolver
}

// Reduce applies cmd to g with every write stamped now. Unresolvable paths are no-ops;
// only invalid input returns an error.
func (r *Reducer) Reduce(g *aggregates.ThoughtGraph, cmd Command, now time.Time) (Result, error) {
	if err := r.validatePaths(cmd); err != nil {
		return unchanged(g), err
	}
	switch c := cmd.(type) {
	case Create:
		return r.create(g, c, now)
	case Edit:
		return r.edit(g, c, now)
	case Move:
		return r.move(g, c, now)
	case Delete:
		return r.delete(g, c, now)
	case BumpDown:
		return r.bumpDown(g, c, now)
	case MoveDown:
		return r.moveDown(g, c, now)
	case MoveUp:
		return r.moveUp(g, c, now)
	case SubCategorize:
		return r.subCategorize(g, c, now)
	case ImportText:
		return r.importText(g, c, now)
	case MergeRemote:
		return r.mergeRemote(g, c, now), nil
	case Clear:
		return r.clear(g), nil
	default:
		return unchanged(g), fmt.Errorf("unsupported command %T", cmd)
	}
}

// validatePaths checks the values and ranks of every path a command addresses
func (r *Reducer) validatePaths(cmd Command) error {
	var paths []valueobjects.Path
	switch c := cmd.(type) {
	case Create:
		paths = []valueobjects.Path{c.At}
	case Edit:
		paths = []valueobjects.Path{c.Path}
	case Move:
		paths = []valueobjects.Path{c.From, c.To}
	case Delete:
		paths = []valueobjects.Path{c.Path}
	case BumpDown:
		paths = []valueobjects.Path{c.Path}
	case MoveDown:
		paths = []valueobjects.Path{c.Path}
	case MoveUp:
		paths = []valueobjects.Path{c.Path}
	case SubCategorize:
		paths = []valueobjects.Path{c.Path}
	case ImportText:
		paths = []valueobjects.Path{c.At}
	}
	for _, path := range paths {
		if err := r.validator.ValidatePath(path); err != nil {
			return err
		}
	}
	return nil
}

func unchanged(g *aggregates.ThoughtGraph) Result {
	return Result{Graph: g, Delta: aggregates.NewDelta()}
}

func rejected(g *aggregates.ThoughtGraph, alert string) Result {
	return Result{Graph: g, Delta: aggregates.NewDelta(), Alert: alert}
}

func committed(tx *aggregates.Tx, cursor valueobjects.Path) Result {
	next, delta := tx.Commit()
	return Result{Graph: next, Delta: delta, Cursor: cursor}
}

func (r *Reducer) ellipsize(value string) string {
	return aggregates.Ellipsize(value, r.ellipsizeAt)
}
