// Package models holds the gorm entities.
package models

// All lists every entity in migration order.
func All() []interface{} {
	return []interface{}{
		&ParentProfile{},
		&ChildProfile{},
		&GameRoom{},
		&RoomParticipant{},
		&RoomOffer{},
		&GameSession{},
		&GameScore{},
		&Friend{},
		&GeneratedStory{},
		&VoiceSubscription{},
	}
}
