package models

import (
	"time"

	"github.com/google/uuid"
)

// Room lifecycle states.
const (
	RoomWaiting    = "waiting"
	RoomInProgress = "in_progress"
	RoomClosed     = "closed"
)

// GameRoom is a multiplayer room. CurrentPlayers is denormalized and must
// always equal len(participants).
type GameRoom struct {
	Base
	RoomCode           string            `gorm:"size:12;uniqueIndex;not null" json:"room_code"`
	HostChildID        uuid.UUID         `gorm:"type:uuid;index;not null" json:"host_child_id"`
	GameID             string            `gorm:"not null" json:"game_id"`
	Difficulty         string            `gorm:"not null" json:"difficulty"`
	SelectedCategory   *string           `json:"selected_category"`
	MaxPlayers         int               `gorm:"not null;default:4" json:"max_players"`
	CurrentPlayers     int               `gorm:"not null;default:1" json:"current_players"`
	Status             string            `gorm:"size:16;index;not null;default:'waiting'" json:"status"`
	HasSyntheticPlayer bool              `gorm:"not null;default:false" json:"has_synthetic_player"`
	Participants       []RoomParticipant `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

// IsOpen reports whether the room accepts new participants.
func (r *GameRoom) IsOpen() bool { return r.Status == RoomWaiting }

// IsFull reports whether the room reached max players.
func (r *GameRoom) IsFull() bool { return r.CurrentPlayers >= r.MaxPlayers }

// RoomParticipant is a room occupant. ChildID is nil for synthetic players.
type RoomParticipant struct {
	Base
	RoomID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_room_participants_room_child" json:"room_id"`
	ChildID      *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_room_participants_room_child" json:"child_id"`
	PlayerName   string     `gorm:"not null" json:"player_name"`
	PlayerAvatar string     `json:"player_avatar"`
	Personality  string     `json:"personality,omitempty"`
	IsSynthetic  bool       `gorm:"not null;default:false" json:"is_synthetic"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`
}

// Persona is a synthetic player template from the configured roster.
type Persona struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Personality string `json:"personality"`
}
