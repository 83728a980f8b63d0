package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Event types published by the sync engine
const (
	EventTypeThoughtsSynced     = "thoughts.synced"
	EventTypeThoughtsSyncFailed = "thoughts.sync_failed"
	EventTypeRemoteMerged       = "thoughts.remote_merged"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// ThoughtsSynced is raised after a delta has been pushed to the remote store.
// The aggregate is the user's thought document.
type ThoughtsSynced struct {
	BaseEvent
	UserID         string `json:"user_id"`
	ClientID       string `json:"client_id"`
	ThoughtUpdates int    `json:"thought_updates"`
	ContextUpdates int    `json:"context_updates"`
}

// NewThoughtsSynced creates a ThoughtsSynced event
func NewThoughtsSynced(userID, clientID string, thoughtUpdates, contextUpdates int, timestamp time.Time) ThoughtsSynced {
	return ThoughtsSynced{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   EventTypeThoughtsSynced,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:         userID,
		ClientID:       clientID,
		ThoughtUpdates: thoughtUpdates,
		ContextUpdates: contextUpdates,
	}
}

// ThoughtsSyncFailed is raised when a local or remote write could not be completed
type ThoughtsSyncFailed struct {
	BaseEvent
	UserID string `json:"user_id"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// NewThoughtsSyncFailed creates a ThoughtsSyncFailed event. Target is "local" or "remote".
func NewThoughtsSyncFailed(userID, target, reason string, timestamp time.Time) ThoughtsSyncFailed {
	return ThoughtsSyncFailed{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   EventTypeThoughtsSyncFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID: userID,
		Target: target,
		Reason: reason,
	}
}

// RemoteMerged is raised when a remote snapshot changed local state
type RemoteMerged struct {
	BaseEvent
	UserID         string `json:"user_id"`
	OriginClientID string `json:"origin_client_id"`
	Applied        int    `json:"applied"`
}

// NewRemoteMerged creates a RemoteMerged event
func NewRemoteMerged(userID, originClientID string, applied int, timestamp time.Time) RemoteMerged {
	return RemoteMerged{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   EventTypeRemoteMerged,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:         userID,
		OriginClientID: originClientID,
		Applied:        applied,
	}
}
