package ports

import (
	"context"
	"time"

	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/domain/events"
)

// Metadata names written next to the indexes
const (
	MetaLastUpdated    = "lastUpdated"
	MetaSchemaVersion  = "schemaVersion"
	MetaRecentlyEdited = "recentlyEdited"
)

// Snapshot is the full content of a store
type Snapshot struct {
	ThoughtIndex map[valueobjects.Key]*entities.Lexeme
	ContextIndex map[valueobjects.Key]*entities.ContextEntry
	Metadata     map[string]string
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ThoughtIndex: make(map[valueobjects.Key]*entities.Lexeme),
		ContextIndex: make(map[valueobjects.Key]*entities.ContextEntry),
		Metadata:     make(map[string]string),
	}
}

// LocalStore defines the local key-value store behind the sync engine.
// This is a port in hexagonal architecture - the engine doesn't know about the implementation.
// Keys are namespaced by kind (thought/<key>, context/<key>, meta/<name>).
type LocalStore interface {
	// WriteThoughts stores every Lexeme in one batch. A nil Lexeme deletes its key.
	WriteThoughts(ctx context.Context, updates map[valueobjects.Key]*entities.Lexeme) error

	// WriteContexts stores every entry in one batch. A nil or empty entry deletes its key.
	WriteContexts(ctx context.Context, updates map[valueobjects.Key]*entities.ContextEntry) error

	// PutMetadata stores bookkeeping values such as lastUpdated and schemaVersion
	PutMetadata(ctx context.Context, name, value string) error

	// GetAll reads the whole store
	GetAll(ctx context.Context) (*Snapshot, error)

	// Clear deletes every key
	Clear(ctx context.Context) error
}

// Remote patch paths. Index paths are followed by the entity key.
const (
	PatchThoughtIndex  = "thoughtIndex/"
	PatchContextIndex  = "contextIndex/"
	PatchLastClientID  = "lastClientId"
	PatchLastUpdated   = "lastUpdated"
	PatchSchemaVersion = "schemaVersion"
)

// Patch is a multi-path partial write. Values are *entities.Lexeme, *entities.ContextEntry,
// strings, time.Time or int; a nil value deletes the path.
type Patch map[string]interface{}

// RemoteSnapshot is the full remote document of one user
type RemoteSnapshot struct {
	ThoughtIndex  map[valueobjects.Key]*entities.Lexeme
	ContextIndex  map[valueobjects.Key]*entities.ContextEntry
	LastClientID  string
	LastUpdated   time.Time
	SchemaVersion int
}

// NewRemoteSnapshot creates an empty remote document
func NewRemoteSnapshot() *RemoteSnapshot {
	return &RemoteSnapshot{
		ThoughtIndex: make(map[valueobjects.Key]*entities.Lexeme),
		ContextIndex: make(map[valueobjects.Key]*entities.ContextEntry),
	}
}

// HasThoughts reports whether the document holds at least one live Lexeme. Tombstones
// left by deletions do not count.
func (s *RemoteSnapshot) HasThoughts() bool {
	if s == nil {
		return false
	}
	for _, lexeme := range s.ThoughtIndex {
		if !lexeme.IsOrphaned() {
			return true
		}
	}
	return false
}

// Subscription detaches a remote listener
type Subscription interface {
	Unsubscribe()
}

// RemoteStore defines the remote document store shared by every client of a user
type RemoteStore interface {
	// Update applies patch to the user's document as one write
	Update(ctx context.Context, userID string, patch Patch) error

	// Get reads the user's document
	Get(ctx context.Context, userID string) (*RemoteSnapshot, error)

	// Subscribe delivers the full document whenever any client commits a change
	Subscribe(ctx context.Context, userID string, onSnapshot func(*RemoteSnapshot)) (Subscription, error)
}

// SettingsMirror is a small synchronous string store holding a few settings so they can be
// read before the graph has loaded. Keys look like "Settings/Theme".
type SettingsMirror interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Delete(name string) error
	Clear() error
}

// EventPublisher publishes domain events to external consumers
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// Severity of a user-visible notification
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a user-visible signal such as the error banner
type Notification struct {
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier surfaces persistence and remote failures to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Clock abstracts time so reducers and the sync engine can be driven in tests
type Clock interface {
	Now() time.Time
}

// SchemaMigrator upgrades a stored snapshot to the current schema version in place and
// reports the versions it moved between
type SchemaMigrator interface {
	Migrate(ctx context.Context, snapshot *Snapshot) (from int, to int, err error)
}
