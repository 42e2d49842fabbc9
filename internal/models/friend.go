package models

import "github.com/google/uuid"

const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
)

// Friend is a relationship between two children.
type Friend struct {
	Base
	RequesterID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_friends_pair" json:"requester_id"`
	AddresseeID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_friends_pair" json:"addressee_id"`
	Status      string    `gorm:"size:16;not null;default:'pending'" json:"status"`
}

// Other returns the id on the other side of the relationship.
func (f *Friend) Other(childID uuid.UUID) uuid.UUID {
	if f.RequesterID == childID {
		return f.AddresseeID
	}
	return f.RequesterID
}
