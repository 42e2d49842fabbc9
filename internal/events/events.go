// Package events fans room changes out to the children they concern.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	RoomCreated       = "room_created"
	ParticipantJoined = "participant_joined"
	ParticipantLeft   = "participant_left"
	RoomClosed        = "room_closed"
	RoomStarted       = "room_started"
	OfferCreated      = "offer_created"
	OfferResolved     = "offer_resolved"
)

// RoomEvent is the message delivered to each recipient.
type RoomEvent struct {
	Type     string      `json:"type"`
	RoomID   uuid.UUID   `json:"room_id"`
	RoomCode string      `json:"room_code,omitempty"`
	ChildID  *uuid.UUID  `json:"child_id,omitempty"`
	OfferID  *uuid.UUID  `json:"offer_id,omitempty"`
	Status   string      `json:"status,omitempty"`
	At       time.Time   `json:"at"`
	To       []uuid.UUID `json:"-"`
}

// Publisher delivers events. Delivery is best effort; the database stays the
// source of truth.
type Publisher interface {
	Publish(ctx context.Context, ev RoomEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, RoomEvent) error { return nil }

// Channel is the pub/sub channel of one child.
func Channel(childID uuid.UUID) string {
	return "child:" + childID.String()
}
