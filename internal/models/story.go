package models

import "github.com/google/uuid"

// GeneratedStory is a story produced for a child.
type GeneratedStory struct {
	Base
	ChildID  uuid.UUID `gorm:"type:uuid;index;not null" json:"child_id"`
	Title    string    `gorm:"not null" json:"title"`
	Content  string    `gorm:"not null" json:"content"`
	AudioURL string    `json:"audio_url,omitempty"`
}
