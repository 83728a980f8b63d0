package syncengine

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/events"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

// syncRemote pushes delta to the user's remote document as one multi-path write
func (e *Engine) syncRemote(ctx context.Context, userID string, delta aggregates.Delta, opts Options) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "sync.remote")
	defer span.End()

	patch := e.buildPatch(delta, opts)
	if len(patch) == 0 {
		return nil
	}
	span.SetAttributes(attribute.Int("patch.paths", len(patch)))

	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.remote.Update(ctx, userID, patch)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordSync("remote", "error", time.Since(start), len(patch))
		return pkgerrors.NewRemoteError("update", err)
	}

	e.metrics.RecordSync("remote", "success", time.Since(start), len(patch))
	e.publish(ctx, events.NewThoughtsSynced(
		userID,
		e.cfg.ClientID,
		len(delta.ThoughtIndexUpdates),
		len(delta.ContextIndexUpdates),
		e.clock.Now(),
	))
	return nil
}

// buildPatch maps a delta onto remote paths. Deleted records become tombstones stamped
// with the delta's timestamp so other clients apply the deletion through last-write-wins.
// Entries with an empty key are logged and dropped; the rest of the patch is still written.
func (e *Engine) buildPatch(delta aggregates.Delta, opts Options) ports.Patch {
	patch := make(ports.Patch, delta.Len()+3)
	integrity := e.DataIntegrityCheck()
	deletedAt := delta.Timestamp
	if deletedAt.IsZero() {
		deletedAt = e.clock.Now()
	}

	for key, lexeme := range delta.ThoughtIndexUpdates {
		if key.IsZero() {
			e.logger.Error("Dropping thought with empty key",
				zap.Error(pkgerrors.NewIntegrityError("thought index update has an empty key")),
				zap.Any("lexeme", lexeme),
			)
			continue
		}
		if lexeme == nil {
			patch[ports.PatchThoughtIndex+key.String()] = entities.NewLexemeTombstone(deletedAt)
			continue
		}
		if integrity {
			lexeme = repairLexeme(lexeme)
		}
		patch[ports.PatchThoughtIndex+key.String()] = lexeme
	}

	for key, entry := range delta.ContextIndexUpdates {
		if key.IsZero() {
			e.logger.Error("Dropping context entry with empty key",
				zap.Error(pkgerrors.NewIntegrityError("context index update has an empty key")),
				zap.Any("entry", entry),
			)
			continue
		}
		if entry == nil {
			patch[ports.PatchContextIndex+key.String()] = entities.NewContextEntryTombstone(deletedAt)
			continue
		}
		if entry.IsEmpty() {
			patch[ports.PatchContextIndex+key.String()] = entities.NewContextEntryTombstone(entry.LastUpdated)
			continue
		}
		if integrity {
			entry = repairContextEntry(entry)
		}
		patch[ports.PatchContextIndex+key.String()] = entry
	}

	if len(delta.ThoughtIndexUpdates) > 0 {
		patch[ports.PatchLastClientID] = e.cfg.ClientID
		patch[ports.PatchLastUpdated] = e.clock.Now()
	}
	if opts.SchemaVersion > 0 {
		patch[ports.PatchSchemaVersion] = opts.SchemaVersion
	}
	return patch
}

// repairLexeme zeroes non-finite ranks and replaces missing contexts
func repairLexeme(lexeme *entities.Lexeme) *entities.Lexeme {
	out := lexeme.Clone()
	if out.Contexts == nil {
		out.Contexts = []entities.ContextRef{}
	}
	for i := range out.Contexts {
		if !isFinite(out.Contexts[i].Rank) {
			out.Contexts[i].Rank = 0
		}
	}
	return out
}

func repairContextEntry(entry *entities.ContextEntry) *entities.ContextEntry {
	out := entry.Clone()
	for i := range out.Children {
		if !isFinite(out.Children[i].Rank) {
			out.Children[i].Rank = 0
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
