package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/commands"
	"github.com/anmolarora1/em/application/commands/bus"
	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/application/syncengine"
	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	domainservices "github.com/anmolarora1/em/domain/services"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

// DefaultTheme is used until a theme setting exists
const DefaultTheme = "Dark"

// ThoughtService owns the in-memory thought graph. Every mutation goes through the
// command bus to the reducer; the resulting delta is handed to the sync engine in dispatch
// order.
type ThoughtService struct {
	mu      sync.RWMutex
	graph   *aggregates.ThoughtGraph
	keys    valueobjects.KeyFactory
	views   *domainservices.ContextViews
	reducer *commands.Reducer

	bus      *bus.CommandBus
	engine   *syncengine.Engine
	local    ports.LocalStore
	mirror   ports.SettingsMirror
	migrator ports.SchemaMigrator
	clock    ports.Clock
	logger   *zap.Logger

	loadOnce sync.Once
	loaded   chan struct{}
}

// NewThoughtService creates a service with an empty graph. Call Load before serving.
func NewThoughtService(
	cfg *config.DomainConfig,
	engine *syncengine.Engine,
	local ports.LocalStore,
	mirror ports.SettingsMirror,
	migrator ports.SchemaMigrator,
	clock ports.Clock,
	logger *zap.Logger,
	middlewares ...bus.Middleware,
) *ThoughtService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	keys := valueobjects.NewKeyFactory(valueobjects.NewHasher(cfg.DisableThoughtHashing))
	views := domainservices.NewContextViews(keys)

	s := &ThoughtService{
		graph:    aggregates.NewThoughtGraph(keys),
		keys:     keys,
		views:    views,
		reducer:  commands.NewReducer(cfg, views),
		engine:   engine,
		local:    local,
		mirror:   mirror,
		migrator: migrator,
		clock:    clock,
		logger:   logger.Named("thoughts"),
		loaded:   make(chan struct{}),
	}
	s.bus = bus.NewCommandBus(bus.CommandHandlerFunc(s.handle), middlewares...)
	return s
}

// Dispatch sends cmd through the command bus
func (s *ThoughtService) Dispatch(ctx context.Context, cmd commands.Command) (commands.Result, error) {
	return s.bus.Send(ctx, cmd)
}

func (s *ThoughtService) handle(ctx context.Context, cmd commands.Command) (commands.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.reducer.Reduce(s.graph, cmd, s.clock.Now())
	if err != nil {
		return result, err
	}
	s.graph = result.Graph
	if !result.Changed() {
		return result, nil
	}
	s.applySettings(result.Delta)

	var opts syncengine.Options
	switch c := cmd.(type) {
	case commands.Clear:
		// Resetting the in-memory graph is not a deletion of the stored data
		return result, nil
	case commands.MergeRemote:
		opts = syncengine.LocalOnly()
		if c.Origin == commands.OriginLocal {
			return result, nil
		}
	default:
		opts = syncengine.LocalAndRemote()
		opts.RecentlyEdited = recentlyEdited(result.Cursor)
	}

	s.sync(ctx, result.Delta, opts)
	return result, nil
}

// applySettings pushes settings the engine acts on when delta touches them. Must be
// called with mu held.
func (s *ThoughtService) applySettings(delta aggregates.Delta) {
	key := s.keys.Context(aggregates.SettingsContext(aggregates.SettingDataIntegrityCheck))
	if _, ok := delta.ContextIndexUpdates[key]; !ok {
		return
	}
	value, _ := aggregates.GetSetting(s.graph, aggregates.SettingDataIntegrityCheck)
	s.engine.SetDataIntegritySetting(value == aggregates.SettingOn)
	s.logger.Info("Data integrity check setting changed", zap.String("value", value))
}

// sync hands a delta to the engine. Must be called with mu held so deltas are queued in
// the order they were produced.
func (s *ThoughtService) sync(ctx context.Context, delta aggregates.Delta, opts syncengine.Options) {
	if err := s.engine.Sync(ctx, delta, opts); err != nil {
		s.logger.Warn("Failed to queue delta", zap.Int("keys", delta.Len()), zap.Error(err))
	}
}

func recentlyEdited(cursor valueobjects.Path) string {
	if len(cursor) == 0 {
		return ""
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return string(data)
}

// Load reads the local store into the graph, migrating old schemas, and imports the
// initial settings when none exist
func (s *ThoughtService) Load(ctx context.Context) error {
	snapshot, err := s.local.GetAll(ctx)
	if err != nil {
		return pkgerrors.NewPersistenceError("load", err)
	}

	stored := make([]valueobjects.Key, 0, len(snapshot.ThoughtIndex)+len(snapshot.ContextIndex))
	for key := range snapshot.ThoughtIndex {
		stored = append(stored, key)
	}
	storedContexts := make([]valueobjects.Key, 0, len(snapshot.ContextIndex))
	for key := range snapshot.ContextIndex {
		storedContexts = append(storedContexts, key)
	}

	from, to := config.SchemaLatest, config.SchemaLatest
	if s.migrator != nil {
		from, to, err = s.migrator.Migrate(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("failed to migrate local store: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.reducer.Reduce(s.graph, commands.MergeRemote{
		Origin:       commands.OriginLocal,
		ThoughtIndex: snapshot.ThoughtIndex,
		ContextIndex: snapshot.ContextIndex,
	}, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to merge local store: %w", err)
	}
	s.graph = result.Graph
	s.applySettings(result.Delta)

	if from != to {
		// Rewrite the migrated state and delete the keys the migration dropped
		delta := s.graph.Snapshot()
		for _, key := range stored {
			if _, ok := delta.ThoughtIndexUpdates[key]; !ok {
				delta.ThoughtIndexUpdates[key] = nil
			}
		}
		for _, key := range storedContexts {
			if _, ok := delta.ContextIndexUpdates[key]; !ok {
				delta.ContextIndexUpdates[key] = nil
			}
		}
		s.logger.Info("Migrated local store", zap.Int("from", from), zap.Int("to", to), zap.Int("keys", delta.Len()))
		s.sync(ctx, delta, syncengine.Options{Local: true, SchemaVersion: to})
	}

	if _, ok := s.graph.GetContextEntry(aggregates.SettingsContext()); !ok {
		if err := s.importInitialSettings(ctx); err != nil {
			return err
		}
	}

	s.loadOnce.Do(func() { close(s.loaded) })
	s.logger.Info("Loaded thoughts",
		zap.Int("thoughts", s.graph.ThoughtCount()),
		zap.Int("contexts", s.graph.ContextCount()),
	)
	return nil
}

// importInitialSettings imports the default settings stamped so that any stored or remote
// setting wins over them. Must be called with mu held.
func (s *ThoughtService) importInitialSettings(ctx context.Context) error {
	result, err := s.reducer.Reduce(s.graph, commands.ImportInitialSettings(), entities.Never)
	if err != nil {
		return fmt.Errorf("failed to import initial settings: %w", err)
	}
	s.graph = result.Graph
	s.applySettings(result.Delta)
	if result.Changed() {
		s.sync(ctx, result.Delta, syncengine.Options{Local: true, SchemaVersion: config.SchemaLatest})
	}
	return nil
}

// WaitLoaded blocks until Load has completed
func (s *ThoughtService) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLoaded reports whether Load has completed
func (s *ThoughtService) IsLoaded() bool {
	select {
	case <-s.loaded:
		return true
	default:
		return false
	}
}

// Snapshot returns the whole graph as a delta
func (s *ThoughtService) Snapshot() aggregates.Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Snapshot()
}

// ApplyRemote merges a remote document with last-write-wins
func (s *ThoughtService) ApplyRemote(ctx context.Context, snapshot *ports.RemoteSnapshot) (int, error) {
	result, err := s.Dispatch(ctx, commands.MergeRemote{
		Origin:       commands.OriginRemote,
		ThoughtIndex: snapshot.ThoughtIndex,
		ContextIndex: snapshot.ContextIndex,
	})
	if err != nil {
		return 0, err
	}
	return result.Delta.Len(), nil
}

// Login starts syncing with the remote document of userID
func (s *ThoughtService) Login(ctx context.Context, userID string) error {
	return s.engine.Login(ctx, userID, s)
}

// Logout stops syncing, clears local data and restores the initial settings
func (s *ThoughtService) Logout(ctx context.Context) error {
	if err := s.engine.Logout(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.reducer.Reduce(s.graph, commands.Clear{}, s.clock.Now())
	if err != nil {
		return err
	}
	s.graph = result.Graph
	s.applySettings(result.Delta)
	s.views.Reset()
	return s.importInitialSettings(ctx)
}

// UserID returns the logged in user, or "" when logged out
func (s *ThoughtService) UserID() string {
	return s.engine.UserID()
}

// ToggleContextView flips the context view of the thought at path
func (s *ThoughtService) ToggleContextView(path valueobjects.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views.Toggle(path.Context())
}

// Children lists the children shown under path, honoring context views
func (s *ThoughtService) Children(path valueobjects.Path) ([]entities.ChildRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.Resolver().Children(s.graph, path)
}

// ChildrenOf lists the children of a context
func (s *ThoughtService) ChildrenOf(ctx valueobjects.Context) ([]entities.ChildRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := domainservices.ContextToPath(s.graph, ctx)
	if !ok {
		// contexts under the hidden meta root are not reachable from the root
		if _, exists := s.graph.GetContextEntry(ctx); exists {
			return s.graph.Children(ctx), nil
		}
		return nil, pkgerrors.NewResolutionError(ctx.String())
	}
	return s.reducer.Resolver().Children(s.graph, path)
}

// PathOf resolves a context to its ranked path
func (s *ThoughtService) PathOf(ctx valueobjects.Context) (valueobjects.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := domainservices.ContextToPath(s.graph, ctx)
	if !ok {
		return nil, pkgerrors.NewResolutionError(ctx.String())
	}
	return path, nil
}

// Lexeme returns the record of value
func (s *ThoughtService) Lexeme(value string) (*entities.Lexeme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lexeme, ok := s.graph.GetLexeme(value)
	if !ok {
		return nil, false
	}
	return lexeme.Clone(), true
}

// Setting returns the value of a setting
func (s *ThoughtService) Setting(name ...string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregates.GetSetting(s.graph, name...)
}

// Theme returns the theme setting. While loading it is read from the settings mirror.
func (s *ThoughtService) Theme() string {
	if !s.IsLoaded() {
		if s.mirror != nil {
			if theme, ok := s.mirror.Get(syncengine.SettingsPrefix + "Theme"); ok && theme != "" {
				return theme
			}
		}
		return DefaultTheme
	}
	if theme, ok := s.Setting("Theme"); ok {
		return theme
	}
	return DefaultTheme
}

// Stats returns the number of thoughts and contexts
func (s *ThoughtService) Stats() (thoughts, contexts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.ThoughtCount(), s.graph.ContextCount()
}

// TreeNode is one thought of a rendered subtree
type TreeNode struct {
	Value    string      `json:"value"`
	Rank     float64     `json:"rank"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree returns the subtree under ctx to the given depth. A depth of zero is unlimited.
// Meta thoughts are included only when includeMeta is set.
func (s *ThoughtService) Tree(ctx valueobjects.Context, depth int, includeMeta bool) ([]*TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists(ctx) {
		return nil, pkgerrors.NewResolutionError(ctx.String())
	}
	return s.tree(ctx, depth, includeMeta), nil
}

func (s *ThoughtService) exists(ctx valueobjects.Context) bool {
	if ctx.IsRoot() {
		return true
	}
	if _, ok := s.graph.GetContextEntry(ctx); ok {
		return true
	}
	_, ok := domainservices.ContextToPath(s.graph, ctx)
	return ok
}

func (s *ThoughtService) tree(ctx valueobjects.Context, depth int, includeMeta bool) []*TreeNode {
	var children []entities.ChildRef
	if includeMeta {
		children = s.graph.Children(ctx)
	} else {
		children = aggregates.VisibleChildren(s.graph, ctx)
	}
	nodes := make([]*TreeNode, 0, len(children))
	for _, child := range children {
		node := &TreeNode{Value: child.Value, Rank: child.Rank}
		if depth != 1 {
			next := depth - 1
			if depth == 0 {
				next = 0
			}
			node.Children = s.tree(ctx.Append(child.Value), next, includeMeta)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Export renders the subtree under ctx as an indented outline that ImportText accepts
func (s *ThoughtService) Export(ctx valueobjects.Context, includeMeta bool) (string, error) {
	nodes, err := s.Tree(ctx, 0, includeMeta)
	if err != nil {
		return "", err
	}
	var lines []commands.OutlineLine
	var walk func(nodes []*TreeNode, depth int)
	walk = func(nodes []*TreeNode, depth int) {
		for _, node := range nodes {
			lines = append(lines, commands.OutlineLine{Depth: depth, Value: node.Value})
			walk(node.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return commands.FormatOutline(lines), nil
}

// Close waits for queued writes
func (s *ThoughtService) Close(ctx context.Context) error {
	if err := s.engine.Wait(ctx); err != nil && !errors.Is(err, syncengine.ErrEngineStopped) {
		return err
	}
	return nil
}
