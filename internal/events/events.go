// Package events describes the change notifications emitted by the item
// store after every committed mutation, and the ports used to ship them to a
// message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ItemCreated     Type = "item.created"
	ItemUpdated     Type = "item.updated"
	ItemDeleted     Type = "item.deleted"
	ItemPurchased   Type = "item.purchased"
	ItemUnpurchased Type = "item.unpurchased"
	LabelChanged    Type = "label.changed"
)

func (t Type) Valid() bool {
	switch t {
	case ItemCreated, ItemUpdated, ItemDeleted, ItemPurchased, ItemUnpurchased, LabelChanged:
		return true
	}
	return false
}

// ItemEvent is a lightweight notification: consumers fetch the current item
// state from the store using ItemID.
type ItemEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	ItemID    int64     `json:"item_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewItemEvent(t Type, itemID, version int64) ItemEvent {
	return ItemEvent{
		ID:        uuid.New(),
		Type:      t,
		ItemID:    itemID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e ItemEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event and rejects unknown types.
func FromJSON(data []byte) (ItemEvent, error) {
	var e ItemEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ItemEvent{}, err
	}
	if !e.Type.Valid() {
		return ItemEvent{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}

// Publisher ships events to a broker. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e ItemEvent) error
	Close() error
}

// Handler processes one event. A returned error asks the broker to redeliver.
type Handler func(ctx context.Context, e ItemEvent) error

// Consumer delivers events to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, ItemEvent) error { return nil }
func (Nop) Close() error                             { return nil }
