// Package memory provides in-process implementations of the store ports, used by tests
// and by the server when no persistent backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// LocalStore is a map-backed ports.LocalStore
type LocalStore struct {
	mu       sync.RWMutex
	thoughts map[valueobjects.Key]*entities.Lexeme
	contexts map[valueobjects.Key]*entities.ContextEntry
	meta     map[string]string
}

// NewLocalStore creates an empty store
func NewLocalStore() *LocalStore {
	s := &LocalStore{}
	s.reset()
	return s
}

func (s *LocalStore) reset() {
	s.thoughts = make(map[valueobjects.Key]*entities.Lexeme)
	s.contexts = make(map[valueobjects.Key]*entities.ContextEntry)
	s.meta = make(map[string]string)
}

// WriteThoughts implements ports.LocalStore
func (s *LocalStore) WriteThoughts(ctx context.Context, updates map[valueobjects.Key]*entities.Lexeme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, lexeme := range updates {
		if lexeme == nil {
			delete(s.thoughts, key)
			continue
		}
		s.thoughts[key] = lexeme.Clone()
	}
	return nil
}

// WriteContexts implements ports.LocalStore
func (s *LocalStore) WriteContexts(ctx context.Context, updates map[valueobjects.Key]*entities.ContextEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range updates {
		if entry == nil || entry.IsEmpty() {
			delete(s.contexts, key)
			continue
		}
		s.contexts[key] = entry.Clone()
	}
	return nil
}

// PutMetadata implements ports.LocalStore
func (s *LocalStore) PutMetadata(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[name] = value
	return nil
}

// GetAll implements ports.LocalStore
func (s *LocalStore) GetAll(ctx context.Context) (*ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := ports.NewSnapshot()
	for key, lexeme := range s.thoughts {
		snapshot.ThoughtIndex[key] = lexeme.Clone()
	}
	for key, entry := range s.contexts {
		snapshot.ContextIndex[key] = entry.Clone()
	}
	for name, value := range s.meta {
		snapshot.Metadata[name] = value
	}
	return snapshot, nil
}

// Clear implements ports.LocalStore
func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
