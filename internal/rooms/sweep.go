package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"playroomserver/internal/database"
	"playroomserver/internal/events"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepStaleRooms tears down rooms nobody changed for olderThan. Each room is
// removed in its own transaction.
func (s *Service) SweepStaleRooms(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.GameRoom{}).
		Where("updated_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("find stale rooms: %w", err)
	}

	swept := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		var evs []events.RoomEvent
		err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
			evs = nil
			room, err := lockRoom(tx, id)
			if err != nil {
				return err
			}
			if !room.UpdatedAt.Before(cutoff) {
				return errFresh
			}
			recipients, err := s.teardown(tx, room)
			if err != nil {
				return err
			}
			evs = append(evs, events.RoomEvent{Type: events.RoomClosed, RoomID: room.ID, RoomCode: room.RoomCode, To: recipients})
			return nil
		})
		switch {
		case err == nil:
			swept++
			s.publish(ctx, evs)
		case errors.Is(err, errFresh), errors.Is(err, ErrRoomNotFound):
		default:
			s.logger.Error("Failed to sweep room", zap.String("room_id", id.String()), zap.Error(err))
		}
	}
	return swept, nil
}

var errFresh = errors.New("room changed since it was selected")

// ExpireStaleOffers cancels offers left pending for olderThan.
func (s *Service) ExpireStaleOffers(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.RoomOffer{}).
		Where("status = ? AND created_at < ?", models.OfferPending, now.Add(-olderThan)).
		Updates(map[string]interface{}{"status": models.OfferCancelled, "resolved_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("expire offers: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
