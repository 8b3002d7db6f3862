package services

import (
	"context"
	"encoding/json"

	"ledger/internal/models"
	"ledger/internal/store"

	"github.com/google/uuid"
)

type HistoryStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.HistoryEntry) error
}

// Actor is who performs an operation and whose data it touches. Jobs act on
// an owner's data under their own actor id.
type Actor struct {
	OwnerID   string
	ActorID   string
	IPAddress string
}

func OwnerActor(ownerID string) Actor {
	return Actor{OwnerID: ownerID, ActorID: ownerID}
}

// recordHistory is the one place that writes audit rows. It snapshots before
// and after as JSON; a nil side is stored as NULL.
func recordHistory[T any](ctx context.Context, tx store.Execer, history HistoryStore, actor Actor, action models.HistoryAction, entityType, entityID string, before, after *T, description string) error {
	oldData, err := snapshot(before)
	if err != nil {
		return err
	}
	newData, err := snapshot(after)
	if err != nil {
		return err
	}
	entry := models.HistoryEntry{
		ID:          uuid.NewString(),
		OwnerID:     actor.OwnerID,
		ActorID:     actor.ActorID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		OldData:     oldData,
		NewData:     newData,
		Description: description,
	}
	if entry.ActorID == "" {
		entry.ActorID = actor.OwnerID
	}
	if actor.IPAddress != "" {
		entry.IPAddress = &actor.IPAddress
	}
	return history.Insert(ctx, tx, entry)
}

func snapshot[T any](value *T) (*string, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := string(data)
	return &out, nil
}
