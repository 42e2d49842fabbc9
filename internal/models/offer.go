package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Offer directions. An invitation is issued by the host to a child; a join
// request is issued by a child and resolved by the host.
const (
	OfferInvitation  = "invitation"
	OfferJoinRequest = "join_request"
)

// Offer states. Both directions share one state machine:
// pending -> accepted | declined | cancelled.
const (
	OfferPending   = "pending"
	OfferAccepted  = "accepted"
	OfferDeclined  = "declined"
	OfferCancelled = "cancelled"
)

// RoomOffer is a pending membership offer for a room.
type RoomOffer struct {
	Base
	RoomID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"room_id"`
	RoomCode     string     `gorm:"size:12;index;not null" json:"room_code"`
	ChildID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"child_id"`
	Direction    string     `gorm:"size:16;index;not null" json:"direction"`
	Status       string     `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	PlayerName   string     `gorm:"not null" json:"player_name"`
	PlayerAvatar string     `json:"player_avatar"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}

func (o *RoomOffer) IsPending() bool { return o.Status == OfferPending }

// StatusLabel renders the status in the vocabulary of the offer's direction:
// join requests are approved or denied, invitations accepted or declined.
func (o *RoomOffer) StatusLabel() string {
	if o.Direction != OfferJoinRequest {
		return o.Status
	}
	switch o.Status {
	case OfferAccepted:
		return "approved"
	case OfferDeclined:
		return "denied"
	}
	return o.Status
}

func (o RoomOffer) MarshalJSON() ([]byte, error) {
	type plain RoomOffer
	p := plain(o)
	p.Status = o.StatusLabel()
	return json.Marshal(p)
}
