package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// RemoteStore is an in-process ports.RemoteStore shared by every engine that holds it.
// Listeners are notified after each Update with a copy of the document.
type RemoteStore struct {
	mu        sync.RWMutex
	docs      map[string]*ports.RemoteSnapshot
	listeners map[string]map[string]func(*ports.RemoteSnapshot)
}

// NewRemoteStore creates an empty remote store
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		docs:      make(map[string]*ports.RemoteSnapshot),
		listeners: make(map[string]map[string]func(*ports.RemoteSnapshot)),
	}
}

// Update implements ports.RemoteStore
func (s *RemoteStore) Update(ctx context.Context, userID string, patch ports.Patch) error {
	s.mu.Lock()
	doc, ok := s.docs[userID]
	if !ok {
		doc = ports.NewRemoteSnapshot()
		s.docs[userID] = doc
	}
	if err := ApplyPatch(doc, patch); err != nil {
		s.mu.Unlock()
		return err
	}
	copied := cloneSnapshot(doc)
	listeners := make([]func(*ports.RemoteSnapshot), 0, len(s.listeners[userID]))
	for _, fn := range s.listeners[userID] {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneSnapshot(copied))
	}
	return nil
}

// Get implements ports.RemoteStore
func (s *RemoteStore) Get(ctx context.Context, userID string) (*ports.RemoteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID]
	if !ok {
		return ports.NewRemoteSnapshot(), nil
	}
	return cloneSnapshot(doc), nil
}

// Subscribe implements ports.RemoteStore
func (s *RemoteStore) Subscribe(ctx context.Context, userID string, onSnapshot func(*ports.RemoteSnapshot)) (ports.Subscription, error) {
	id := uuid.New().String()
	s.mu.Lock()
	if s.listeners[userID] == nil {
		s.listeners[userID] = make(map[string]func(*ports.RemoteSnapshot))
	}
	s.listeners[userID][id] = onSnapshot
	s.mu.Unlock()

	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.listeners[userID], id)
		s.mu.Unlock()
	}}, nil
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// ApplyPatch writes every path of patch into doc. Tombstones are stored like any other
// record; only a bare nil value removes a path.
func ApplyPatch(doc *ports.RemoteSnapshot, patch ports.Patch) error {
	for path, value := range patch {
		switch {
		case strings.HasPrefix(path, ports.PatchThoughtIndex):
			key := valueobjects.Key(strings.TrimPrefix(path, ports.PatchThoughtIndex))
			if value == nil {
				delete(doc.ThoughtIndex, key)
				continue
			}
			lexeme, ok := value.(*entities.Lexeme)
			if !ok {
				return fmt.Errorf("path %s: expected lexeme, got %T", path, value)
			}
			if lexeme == nil {
				delete(doc.ThoughtIndex, key)
				continue
			}
			doc.ThoughtIndex[key] = lexeme.Clone()

		case strings.HasPrefix(path, ports.PatchContextIndex):
			key := valueobjects.Key(strings.TrimPrefix(path, ports.PatchContextIndex))
			if value == nil {
				delete(doc.ContextIndex, key)
				continue
			}
			entry, ok := value.(*entities.ContextEntry)
			if !ok {
				return fmt.Errorf("path %s: expected context entry, got %T", path, value)
			}
			if entry == nil {
				delete(doc.ContextIndex, key)
				continue
			}
			doc.ContextIndex[key] = entry.Clone()

		case path == ports.PatchLastClientID:
			clientID, _ := value.(string)
			doc.LastClientID = clientID

		case path == ports.PatchLastUpdated:
			ts, ok := value.(time.Time)
			if !ok {
				return fmt.Errorf("path %s: expected time, got %T", path, value)
			}
			doc.LastUpdated = ts

		case path == ports.PatchSchemaVersion:
			version, ok := value.(int)
			if !ok {
				return fmt.Errorf("path %s: expected int, got %T", path, value)
			}
			doc.SchemaVersion = version

		default:
			return fmt.Errorf("unknown patch path %q", path)
		}
	}
	return nil
}

func cloneSnapshot(doc *ports.RemoteSnapshot) *ports.RemoteSnapshot {
	out := ports.NewRemoteSnapshot()
	for key, lexeme := range doc.ThoughtIndex {
		out.ThoughtIndex[key] = lexeme.Clone()
	}
	for key, entry := range doc.ContextIndex {
		out.ContextIndex[key] = entry.Clone()
	}
	out.LastClientID = doc.LastClientID
	out.LastUpdated = doc.LastUpdated
	out.SchemaVersion = doc.SchemaVersion
	return out
}
