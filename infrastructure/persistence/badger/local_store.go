// Package badger implements the local store on an embedded BadgerDB.
//
// Records are JSON encoded under three key prefixes: thought/<key>, context/<key> and
// meta/<name>. Each delta is written with one write batch.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// Key prefixes
const (
	PrefixThought = "thought/"
	PrefixContext = "context/"
	PrefixMeta    = "meta/"
)

// Config holds configuration for the BadgerDB instance
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write batch
	SyncWrites bool

	// GCInterval is how often value log garbage collection runs. Zero disables it.
	GCInterval time.Duration
}

// DefaultConfig returns the configuration for a persistent store at path
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// InMemoryConfig returns the configuration used in tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// LocalStore is a ports.LocalStore backed by BadgerDB
type LocalStore struct {
	db     *badger.DB
	logger *zap.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens or creates the store
func Open(cfg Config, logger *zap.Logger) (*LocalStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &LocalStore{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval)
	}
	return s, nil
}

// Close stops garbage collection and closes the database
func (s *LocalStore) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *LocalStore) gcLoop(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				// RunValueLogGC returns an error once nothing is left to collect
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// WriteThoughts implements ports.LocalStore
func (s *LocalStore) WriteThoughts(ctx context.Context, updates map[valueobjects.Key]*entities.Lexeme) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, lexeme := range updates {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := []byte(PrefixThought + key.String())
		if lexeme == nil {
			if err := wb.Delete(k); err != nil {
				return fmt.Errorf("failed to delete thought %s: %w", key, err)
			}
			continue
		}
		data, err := json.Marshal(lexeme)
		if err != nil {
			return fmt.Errorf("failed to marshal thought %s: %w", key, err)
		}
		if err := wb.Set(k, data); err != nil {
			return fmt.Errorf("failed to write thought %s: %w", key, err)
		}
	}
	return wb.Flush()
}

// WriteContexts implements ports.LocalStore
func (s *LocalStore) WriteContexts(ctx context.Context, updates map[valueobjects.Key]*entities.ContextEntry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, entry := range updates {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := []byte(PrefixContext + key.String())
		if entry == nil || entry.IsEmpty() {
			if err := wb.Delete(k); err != nil {
				return fmt.Errorf("failed to delete context %s: %w", key, err)
			}
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal context %s: %w", key, err)
		}
		if err := wb.Set(k, data); err != nil {
			return fmt.Errorf("failed to write context %s: %w", key, err)
		}
	}
	return wb.Flush()
}

// PutMetadata implements ports.LocalStore
func (s *LocalStore) PutMetadata(ctx context.Context, name, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(PrefixMeta+name), []byte(value))
	})
}

// GetAll implements ports.LocalStore
func (s *LocalStore) GetAll(ctx context.Context) (*ports.Snapshot, error) {
	snapshot := ports.NewSnapshot()
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				return s.decode(snapshot, key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read local store: %w", err)
	}
	return snapshot, nil
}

func (s *LocalStore) decode(snapshot *ports.Snapshot, key string, val []byte) error {
	switch {
	case strings.HasPrefix(key, PrefixThought):
		var lexeme entities.Lexeme
		if err := json.Unmarshal(val, &lexeme); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		snapshot.ThoughtIndex[valueobjects.Key(strings.TrimPrefix(key, PrefixThought))] = &lexeme
	case strings.HasPrefix(key, PrefixContext):
		var entry entities.ContextEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		snapshot.ContextIndex[valueobjects.Key(strings.TrimPrefix(key, PrefixContext))] = &entry
	case strings.HasPrefix(key, PrefixMeta):
		snapshot.Metadata[strings.TrimPrefix(key, PrefixMeta)] = string(val)
	default:
		s.logger.Warn("Skipping unknown key in local store", zap.String("key", key))
	}
	return nil
}

// Clear implements ports.LocalStore
func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear local store: %w", err)
	}
	return nil
}

// badgerLogger adapts zap to badger's logger interface
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}
