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

// InviteResult lists the invitations created and the ids that were skipped
// because they were unknown, already in the room or already invited.
type InviteResult struct {
	Invitations []models.RoomOffer `json:"invitations"`
	Skipped     []uuid.UUID        `json:"skipped"`
}

// HandleResult is the outcome of resolving a join request. Room is set when
// the request was approved.
type HandleResult struct {
	Request models.RoomOffer `json:"request"`
	Room    *models.GameRoom `json:"room,omitempty"`
}

// InviteFriends invites friendIDs into the waiting room with the given code.
func (s *Service) InviteFriends(ctx context.Context, roomCode string, friendIDs []uuid.UUID) (*InviteResult, error) {
	var (
		result *InviteResult
		evs    []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		room, err := lockOpenRoomByCode(tx, normalizeCode(roomCode))
		if err != nil {
			return err
		}
		ids := dedupe(friendIDs, room.HostChildID)

		var known []models.ChildProfile
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&known).Error; err != nil {
				return err
			}
		}
		if len(known) == 0 {
			return ErrNoFriendsFound
		}

		offers, err := s.createInvitations(tx, room, ids, s.now().UTC())
		if err != nil {
			return err
		}
		seen := make(map[uuid.UUID]bool, len(friendIDs))
		for _, o := range offers {
			seen[o.ChildID] = true
		}
		result = &InviteResult{Invitations: offers, Skipped: []uuid.UUID{}}
		for _, id := range friendIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			result.Skipped = append(result.Skipped, id)
		}
		evs = offerCreatedEvents(room, offers)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invite friends: %w", err)
	}

	s.logger.Info("Friends invited",
		zap.String("room_code", roomCode),
		zap.Int("invited", len(result.Invitations)),
		zap.Int("skipped", len(result.Skipped)))
	s.publish(ctx, evs)
	return result, nil
}

// createInvitations adds a pending invitation for every existing child in ids
// that is neither in the room nor already invited to it.
func (s *Service) createInvitations(tx *gorm.DB, room *models.GameRoom, ids []uuid.UUID, now time.Time) ([]models.RoomOffer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var children []models.ChildProfile
	if err := tx.Where("id IN ?", ids).Find(&children).Error; err != nil {
		return nil, err
	}

	var members []uuid.UUID
	if err := tx.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND child_id IS NOT NULL", room.ID).
		Pluck("child_id", &members).Error; err != nil {
		return nil, err
	}
	var invited []uuid.UUID
	if err := tx.Model(&models.RoomOffer{}).
		Where("room_id = ? AND direction = ? AND status = ?", room.ID, models.OfferInvitation, models.OfferPending).
		Pluck("child_id", &invited).Error; err != nil {
		return nil, err
	}
	skip := make(map[uuid.UUID]bool, len(members)+len(invited))
	for _, id := range append(members, invited...) {
		skip[id] = true
	}

	offers := make([]models.RoomOffer, 0, len(children))
	for _, c := range children {
		if skip[c.ID] {
			continue
		}
		offers = append(offers, models.RoomOffer{
			RoomID:       room.ID,
			RoomCode:     room.RoomCode,
			ChildID:      c.ID,
			Direction:    models.OfferInvitation,
			Status:       models.OfferPending,
			PlayerName:   c.Name,
			PlayerAvatar: c.DisplayAvatar(),
		})
	}
	if len(offers) == 0 {
		return offers, nil
	}
	if err := tx.Create(&offers).Error; err != nil {
		return nil, fmt.Errorf("insert invitations: %w", err)
	}
	return offers, nil
}

// RequestToJoin files a join request for the host to resolve.
func (s *Service) RequestToJoin(ctx context.Context, roomCode string, childID uuid.UUID) (*models.RoomOffer, error) {
	var (
		offer *models.RoomOffer
		evs   []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		room, err := lockOpenRoomByCode(tx, normalizeCode(roomCode))
		if err != nil {
			return err
		}
		child, err := findChild(tx, childID)
		if err != nil {
			return err
		}
		if child.RoomID != nil && *child.RoomID == room.ID {
			return ErrAlreadyMember
		}

		var n int64
		if err := tx.Model(&models.RoomOffer{}).
			Where("room_id = ? AND child_id = ? AND direction = ? AND status = ?",
				room.ID, childID, models.OfferJoinRequest, models.OfferPending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateRequest
		}

		offer = &models.RoomOffer{
			RoomID:       room.ID,
			RoomCode:     room.RoomCode,
			ChildID:      childID,
			Direction:    models.OfferJoinRequest,
			Status:       models.OfferPending,
			PlayerName:   child.Name,
			PlayerAvatar: child.DisplayAvatar(),
		}
		if err := tx.Create(offer).Error; err != nil {
			return fmt.Errorf("insert join request: %w", err)
		}
		evs = offerCreatedEvents(room, []models.RoomOffer{*offer})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("request to join: %w", err)
	}

	s.logger.Info("Join request created", zap.String("room_code", offer.RoomCode), zap.String("child_id", childID.String()))
	s.publish(ctx, evs)
	return offer, nil
}

// HandleJoinRequest approves or denies a pending join request. Approval runs
// the same checks as JoinRoom; if any fails the request stays pending.
func (s *Service) HandleJoinRequest(ctx context.Context, requestID uuid.UUID, approve bool) (*HandleResult, error) {
	var (
		result *HandleResult
		evs    []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		req, err := findOffer(tx, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && req.Direction != models.OfferJoinRequest) {
			return ErrJoinRequestNotFound
		}
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return ErrOfferResolved
		}

		var room *models.GameRoom
		if approve {
			room, err = lockRoom(tx, req.RoomID)
			if err != nil {
				return err
			}
			if err := s.addParticipant(tx, room, req.ChildID); err != nil {
				return err
			}
		}

		req, err = s.resolveOffer(tx, requestID, approve)
		if err != nil {
			return err
		}
		result = &HandleResult{Request: *req}

		recipients := []uuid.UUID{req.ChildID}
		if room != nil {
			if err := loadParticipants(tx, room); err != nil {
				return err
			}
			result.Room = room
			evs = append(evs, joinedEvent(room, req.ChildID))
		}
		evs = append(evs, offerResolvedEvent(req, recipients))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("handle join request: %w", err)
	}

	s.logger.Info("Join request handled", zap.String("request_id", requestID.String()), zap.Bool("approved", approve))
	s.publish(ctx, evs)
	return result, nil
}

// AcceptInvitation joins childID to the room it was invited to.
func (s *Service) AcceptInvitation(ctx context.Context, invitationID, childID uuid.UUID) (*models.GameRoom, error) {
	var (
		room *models.GameRoom
		evs  []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		inv, err := s.ownInvitation(tx, invitationID, childID)
		if err != nil {
			return err
		}
		if !inv.IsPending() {
			return ErrOfferResolved
		}

		room, err = lockRoom(tx, inv.RoomID)
		if err != nil {
			return err
		}
		if err := s.addParticipant(tx, room, childID); err != nil {
			return err
		}
		inv, err = s.resolveOffer(tx, invitationID, true)
		if err != nil {
			return err
		}
		if err := loadParticipants(tx, room); err != nil {
			return err
		}
		evs = append(evs, joinedEvent(room, childID), offerResolvedEvent(inv, []uuid.UUID{room.HostChildID}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	s.logger.Info("Invitation accepted", zap.String("invitation_id", invitationID.String()), zap.String("child_id", childID.String()))
	s.publish(ctx, evs)
	return room, nil
}

// DeclineInvitation marks the invitation declined. The room is untouched.
func (s *Service) DeclineInvitation(ctx context.Context, invitationID, childID uuid.UUID) error {
	var evs []events.RoomEvent
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		inv, err := s.ownInvitation(tx, invitationID, childID)
		if err != nil {
			return err
		}
		if !inv.IsPending() {
			return ErrOfferResolved
		}
		inv, err = s.resolveOffer(tx, invitationID, false)
		if err != nil {
			return err
		}

		var room models.GameRoom
		err = tx.Select("host_child_id").First(&room, "id = ?", inv.RoomID).Error
		switch {
		case err == nil:
			evs = append(evs, offerResolvedEvent(inv, []uuid.UUID{room.HostChildID}))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("decline invitation: %w", err)
	}
	s.publish(ctx, evs)
	return nil
}

func (s *Service) ownInvitation(tx *gorm.DB, invitationID, childID uuid.UUID) (*models.RoomOffer, error) {
	inv, err := findOffer(tx, invitationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if inv.Direction != models.OfferInvitation || inv.ChildID != childID {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

// resolveOffer locks the offer, re-checks that it is still pending and
// records the outcome. Callers lock the room and children first.
func (s *Service) resolveOffer(tx *gorm.DB, offerID uuid.UUID, accept bool) (*models.RoomOffer, error) {
	offer, err := lockOffer(tx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsPending() {
		return nil, ErrOfferResolved
	}
	status := models.OfferDeclined
	if accept {
		status = models.OfferAccepted
	}
	now := s.now().UTC()
	if err := tx.Model(offer).Updates(map[string]interface{}{
		"status":      status,
		"resolved_at": now,
	}).Error; err != nil {
		return nil, err
	}
	offer.Status, offer.ResolvedAt = status, &now
	return offer, nil
}

// PendingInvitations lists the open invitations of childID, newest first.
func (s *Service) PendingInvitations(ctx context.Context, childID uuid.UUID) ([]models.RoomOffer, error) {
	var offers []models.RoomOffer
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("child_id = ? AND direction = ? AND status = ?", childID, models.OfferInvitation, models.OfferPending).
			Order("created_at DESC").
			Find(&offers).Error
	})
	if err != nil {
		return nil, fmt.Errorf("pending invitations: %w", err)
	}
	return offers, nil
}

// PendingJoinRequests lists the open join requests of a room, oldest first.
func (s *Service) PendingJoinRequests(ctx context.Context, roomID uuid.UUID) ([]models.RoomOffer, error) {
	var offers []models.RoomOffer
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("room_id = ? AND direction = ? AND status = ?", roomID, models.OfferJoinRequest, models.OfferPending).
			Order("created_at").
			Find(&offers).Error
	})
	if err != nil {
		return nil, fmt.Errorf("pending join requests: %w", err)
	}
	return offers, nil
}

func offerCreatedEvents(room *models.GameRoom, offers []models.RoomOffer) []events.RoomEvent {
	evs := make([]events.RoomEvent, 0, len(offers))
	for i := range offers {
		o := offers[i]
		to := []uuid.UUID{o.ChildID}
		if o.Direction == models.OfferJoinRequest {
			to = []uuid.UUID{room.HostChildID}
		}
		evs = append(evs, events.RoomEvent{
			Type:     events.OfferCreated,
			RoomID:   room.ID,
			RoomCode: room.RoomCode,
			ChildID:  &o.ChildID,
			OfferID:  &o.ID,
			Status:   o.StatusLabel(),
			To:       to,
		})
	}
	return evs
}

func offerResolvedEvent(o *models.RoomOffer, to []uuid.UUID) events.RoomEvent {
	return events.RoomEvent{
		Type:     events.OfferResolved,
		RoomID:   o.RoomID,
		RoomCode: o.RoomCode,
		ChildID:  &o.ChildID,
		OfferID:  &o.ID,
		Status:   o.StatusLabel(),
		To:       to,
	}
}
