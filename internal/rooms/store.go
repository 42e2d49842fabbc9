package rooms

import (
	"errors"

	"playroomserver/internal/database"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Every mutation locks rows in the same order: room, then children, then
// offers.

func lockRoom(tx *gorm.DB, roomID uuid.UUID) (*models.GameRoom, error) {
	var room models.GameRoom
	if err := database.ForUpdate(tx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func lockRoomByCode(tx *gorm.DB, code string) (*models.GameRoom, error) {
	var room models.GameRoom
	if err := database.ForUpdate(tx).Where("room_code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// lockOpenRoomByCode treats rooms that stopped accepting players as absent.
func lockOpenRoomByCode(tx *gorm.DB, code string) (*models.GameRoom, error) {
	room, err := lockRoomByCode(tx, code)
	if err != nil {
		return nil, err
	}
	if !room.IsOpen() {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func lockChild(tx *gorm.DB, childID uuid.UUID) (*models.ChildProfile, error) {
	var child models.ChildProfile
	if err := database.ForUpdate(tx).First(&child, "id = ?", childID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}
	return &child, nil
}

func findChild(tx *gorm.DB, childID uuid.UUID) (*models.ChildProfile, error) {
	var child models.ChildProfile
	if err := tx.First(&child, "id = ?", childID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}
	return &child, nil
}

func lockOffer(tx *gorm.DB, offerID uuid.UUID) (*models.RoomOffer, error) {
	var offer models.RoomOffer
	if err := database.ForUpdate(tx).First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func findOffer(tx *gorm.DB, offerID uuid.UUID) (*models.RoomOffer, error) {
	var offer models.RoomOffer
	if err := tx.First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func loadParticipants(tx *gorm.DB, room *models.GameRoom) error {
	var participants []models.RoomParticipant
	if err := tx.Where("room_id = ?", room.ID).Order("joined_at, created_at").Find(&participants).Error; err != nil {
		return err
	}
	room.Participants = participants
	return nil
}

// humanIDs returns the child ids of the human participants.
func humanIDs(participants []models.RoomParticipant) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.ChildID != nil {
			ids = append(ids, *p.ChildID)
		}
	}
	return ids
}

func dedupe(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || id == skip || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
