package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ParentProfile is the account holder, keyed by the external identity.
type ParentProfile struct {
	Base
	Auth0UserID string         `gorm:"uniqueIndex;not null" json:"auth0_user_id"`
	Email       string         `gorm:"not null" json:"email"`
	Name        string         `json:"name"`
	Children    []ChildProfile `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}

// ChildProfile is a player. RoomID is the current-room back-reference; only
// the rooms package writes it.
type ChildProfile struct {
	Base
	ParentID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"parent_id"`
	Name              string     `gorm:"not null" json:"name"`
	AgeGroup          string     `gorm:"not null" json:"age_group"`
	Avatar            string     `json:"avatar"`
	VoiceCloneEnabled bool       `gorm:"not null;default:false" json:"voice_clone_enabled"`
	VoiceID           string     `json:"voice_id,omitempty"`
	IsOnline          bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeenAt        *time.Time `json:"last_seen_at"`
	RoomID            *uuid.UUID `gorm:"type:uuid;index" json:"room_id"`
}

func (ChildProfile) TableName() string { return "children_profiles" }

// InRoom reports whether the child is bound to a room.
func (c *ChildProfile) InRoom() bool { return c.RoomID != nil }

// DisplayAvatar falls back to a generic avatar.
func (c *ChildProfile) DisplayAvatar() string {
	if c.Avatar == "" {
		return DefaultAvatar
	}
	return c.Avatar
}

// MarshalJSON adds the derived in_room flag.
func (c ChildProfile) MarshalJSON() ([]byte, error) {
	type plain ChildProfile
	return json.Marshal(struct {
		plain
		InRoom bool `json:"in_room"`
	}{plain(c), c.RoomID != nil})
}

const DefaultAvatar = "👤"
