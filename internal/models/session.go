package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Game session states.
const (
	SessionActive   = "active"
	SessionPaused   = "paused"
	SessionFinished = "finished"
)

// GameSession records a played game in a room. Sessions and scores are
// append-only history and outlive the room.
type GameSession struct {
	Base
	RoomID              uuid.UUID      `gorm:"type:uuid;index;not null" json:"room_id"`
	GameData            datatypes.JSON `json:"game_data"`
	CurrentTurnPlayerID *uuid.UUID     `gorm:"type:uuid" json:"current_turn_player_id"`
	GameState           string         `gorm:"size:16;not null;default:'active'" json:"game_state"`
}

// GameScore is one player's result in a room.
type GameScore struct {
	Base
	RoomID           uuid.UUID  `gorm:"type:uuid;index;not null" json:"room_id"`
	SessionID        *uuid.UUID `gorm:"type:uuid;index" json:"session_id"`
	ChildID          *uuid.UUID `gorm:"type:uuid;index" json:"child_id"`
	PlayerName       string     `gorm:"not null" json:"player_name"`
	PlayerAvatar     string     `json:"player_avatar"`
	IsSynthetic      bool       `gorm:"not null;default:false" json:"is_synthetic"`
	Score            int        `gorm:"not null;default:0" json:"score"`
	TotalQuestions   int        `gorm:"not null;default:0" json:"total_questions"`
	CorrectAnswers   int        `gorm:"not null;default:0" json:"correct_answers"`
	TimeSpentSeconds int        `gorm:"not null;default:0" json:"time_spent_seconds"`
}
