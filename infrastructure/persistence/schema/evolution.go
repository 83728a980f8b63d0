package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/config"
)

// SchemaVersion records one applied migration
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Migration rewrites a snapshot from one schema version to the next
type Migration struct {
	FromVersion int
	ToVersion   int
	Description string
	Up          MigrationFunc
}

// MigrationFunc transforms a snapshot in place
type MigrationFunc func(ctx context.Context, snapshot *ports.Snapshot) error

// SchemaEvolution upgrades stored snapshots to the latest schema version
type SchemaEvolution struct {
	latest     int
	oldest     int
	migrations []Migration
	history    []SchemaVersion
}

// NewSchemaEvolution creates a migrator targeting latest. Snapshots older than oldest
// cannot be migrated.
func NewSchemaEvolution(oldest, latest int) *SchemaEvolution {
	return &SchemaEvolution{
		latest:     latest,
		oldest:     oldest,
		migrations: []Migration{},
		history:    []SchemaVersion{},
	}
}

// NewDefaultSchemaEvolution registers the built-in migrations up to config.SchemaLatest
func NewDefaultSchemaEvolution() *SchemaEvolution {
	s := NewSchemaEvolution(3, config.SchemaLatest)
	for _, m := range DefaultMigrations() {
		if err := s.RegisterMigration(m); err != nil {
			panic(err)
		}
	}
	return s
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.ToVersion != migration.FromVersion+1 {
		return fmt.Errorf("invalid migration: %d->%d must advance exactly one version",
			migration.FromVersion, migration.ToVersion)
	}
	if migration.Up == nil {
		return fmt.Errorf("invalid migration: %d->%d has no Up function",
			migration.FromVersion, migration.ToVersion)
	}

	for _, existing := range s.migrations {
		if existing.FromVersion == migration.FromVersion {
			return fmt.Errorf("migration from %d to %d already exists",
				migration.FromVersion, migration.ToVersion)
		}
	}

	s.migrations = append(s.migrations, migration)
	return nil
}

// Version reads the schema version of a snapshot. An empty snapshot is already at the
// latest version; a populated one without a version predates versioning.
func (s *SchemaEvolution) Version(snapshot *ports.Snapshot) (int, error) {
	raw, ok := snapshot.Metadata[ports.MetaSchemaVersion]
	if !ok || raw == "" {
		if len(snapshot.ThoughtIndex) == 0 && len(snapshot.ContextIndex) == 0 {
			return s.latest, nil
		}
		return s.latest - 1, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	return version, nil
}

// Migrate upgrades snapshot to the latest version and returns the versions it moved
// between. A snapshot from a newer build is rejected.
func (s *SchemaEvolution) Migrate(ctx context.Context, snapshot *ports.Snapshot) (int, int, error) {
	from, err := s.Version(snapshot)
	if err != nil {
		return 0, 0, err
	}
	if from > s.latest {
		return from, from, fmt.Errorf("schema version %d is newer than supported version %d", from, s.latest)
	}
	if from < s.oldest {
		return from, from, fmt.Errorf("schema version %d is older than the oldest migratable version %d", from, s.oldest)
	}

	current := from
	for current < s.latest {
		migration := s.findMigration(current)
		if migration == nil {
			return from, current, fmt.Errorf("no migration found from version %d to %d", current, current+1)
		}

		if err := migration.Up(ctx, snapshot); err != nil {
			return from, current, fmt.Errorf("migration %d->%d failed: %w",
				migration.FromVersion, migration.ToVersion, err)
		}

		s.history = append(s.history, SchemaVersion{
			Version:     migration.ToVersion,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		})
		current = migration.ToVersion
	}

	snapshot.Metadata[ports.MetaSchemaVersion] = strconv.Itoa(current)
	return from, current, nil
}

func (s *SchemaEvolution) findMigration(from int) *Migration {
	for i := range s.migrations {
		if s.migrations[i].FromVersion == from {
			return &s.migrations[i]
		}
	}
	return nil
}

// GetHistory returns the migrations applied by this instance
func (s *SchemaEvolution) GetHistory() []SchemaVersion {
	return s.history
}

// DefaultMigrations returns the built-in migrations
func DefaultMigrations() []Migration {
	return []Migration{
		{
			FromVersion: 3,
			ToVersion:   4,
			Description: "remove empty context entries and orphaned lexemes",
			Up: func(ctx context.Context, snapshot *ports.Snapshot) error {
				for key, entry := range snapshot.ContextIndex {
					if entry == nil || entry.IsEmpty() {
						delete(snapshot.ContextIndex, key)
					}
				}
				for key, lexeme := range snapshot.ThoughtIndex {
					if lexeme == nil || lexeme.IsOrphaned() {
						delete(snapshot.ThoughtIndex, key)
					}
				}
				return nil
			},
		},
		{
			FromVersion: 4,
			ToVersion:   5,
			Description: "replace non-finite ranks with zero",
			Up: func(ctx context.Context, snapshot *ports.Snapshot) error {
				for key, lexeme := range snapshot.ThoughtIndex {
					for i := range lexeme.Contexts {
						if math.IsNaN(lexeme.Contexts[i].Rank) || math.IsInf(lexeme.Contexts[i].Rank, 0) {
							lexeme = lexeme.Clone()
							lexeme.Contexts[i].Rank = 0
							snapshot.ThoughtIndex[key] = lexeme
						}
					}
				}
				for key, entry := range snapshot.ContextIndex {
					for i := range entry.Children {
						if math.IsNaN(entry.Children[i].Rank) || math.IsInf(entry.Children[i].Rank, 0) {
							entry = entry.Clone()
							entry.Children[i].Rank = 0
							snapshot.ContextIndex[key] = entry
						}
					}
				}
				return nil
			},
		},
	}
}

// MarshalWithSchema marshals data with schema information
func MarshalWithSchema(data interface{}, schemaVersion int) ([]byte, error) {
	wrapper := struct {
		SchemaVersion int         `json:"_schema_version"`
		Data          interface{} `json:"data"`
	}{
		SchemaVersion: schemaVersion,
		Data:          data,
	}
	return json.MarshalIndent(wrapper, "", "  ")
}

// UnmarshalWithSchema unmarshals data and returns schema version
func UnmarshalWithSchema(data []byte) (json.RawMessage, int, error) {
	var wrapper struct {
		SchemaVersion int             `json:"_schema_version"`
		Data          json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, 0, err
	}

	return wrapper.Data, wrapper.SchemaVersion, nil
}
