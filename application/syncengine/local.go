package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
	"github.com/anmolarora1/em/pkg/utils"
)

// SettingsPrefix namespaces mirrored settings
const SettingsPrefix = "Settings/"

// syncLocal writes the thought updates, the context updates and the metadata of one delta
// as independent tasks and joins them
func (e *Engine) syncLocal(ctx context.Context, delta aggregates.Delta, opts Options) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "sync.local")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)

	if len(delta.ThoughtIndexUpdates) > 0 {
		g.Go(func() error {
			if err := e.local.WriteThoughts(gctx, delta.ThoughtIndexUpdates); err != nil {
				return fmt.Errorf("failed to write thought index: %w", err)
			}
			return nil
		})
	}

	if len(delta.ContextIndexUpdates) > 0 {
		g.Go(func() error {
			if err := e.local.WriteContexts(gctx, delta.ContextIndexUpdates); err != nil {
				return fmt.Errorf("failed to write context index: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		meta := map[string]string{ports.MetaLastUpdated: utils.FormatRFC3339(e.clock.Now())}
		if opts.RecentlyEdited != "" {
			meta[ports.MetaRecentlyEdited] = opts.RecentlyEdited
		}
		if opts.SchemaVersion > 0 {
			meta[ports.MetaSchemaVersion] = strconv.Itoa(opts.SchemaVersion)
		}
		for name, value := range meta {
			if err := e.local.PutMetadata(gctx, name, value); err != nil {
				return fmt.Errorf("failed to write metadata %s: %w", name, err)
			}
		}
		return nil
	})

	e.mirrorSettings(delta)

	keys := delta.Len()
	if err := g.Wait(); err != nil {
		e.metrics.RecordSync("local", "error", time.Since(start), keys)
		return pkgerrors.NewPersistenceError("sync local", err)
	}
	e.metrics.RecordSync("local", "success", time.Since(start), keys)
	e.logger.Debug("Synced local store",
		zap.Int("thoughtUpdates", len(delta.ThoughtIndexUpdates)),
		zap.Int("contextUpdates", len(delta.ContextIndexUpdates)),
	)
	return nil
}

// mirrorSettings copies changed settings into the settings mirror. A deleted setting
// context removes its mirror key.
func (e *Engine) mirrorSettings(delta aggregates.Delta) {
	if e.mirror == nil {
		return
	}
	for _, entry := range delta.ContextIndexUpdates {
		if entry == nil {
			continue
		}
		name, ok := e.mirroredSetting(entry.Context)
		if !ok {
			continue
		}
		value, found := firstVisibleChild(entry)
		var err error
		if found {
			err = e.mirror.Set(SettingsPrefix+name, value)
		} else {
			err = e.mirror.Delete(SettingsPrefix + name)
		}
		if err != nil {
			e.logger.Warn("Failed to update settings mirror", zap.String("setting", name), zap.Error(err))
		}
	}
}

// mirroredSetting reports whether ctx is [__EM__, Settings, <name>] for an allow-listed name
func (e *Engine) mirroredSetting(ctx valueobjects.Context) (string, bool) {
	if len(ctx) != 3 || ctx[0] != valueobjects.EMToken || ctx[1] != aggregates.SettingsValue {
		return "", false
	}
	for _, name := range e.cfg.MirroredSettings {
		if ctx[2] == name {
			return name, true
		}
	}
	return "", false
}

func firstVisibleChild(entry *entities.ContextEntry) (string, bool) {
	children := make([]entities.ChildRef, len(entry.Children))
	copy(children, entry.Children)
	entities.SortChildren(children)
	for _, child := range children {
		if !entities.IsFunction(child.Value) {
			return child.Value, true
		}
	}
	return "", false
}
