// Package rooms manages game rooms, their rosters and the invitation and
// join request workflow.
//
// A child's room_id is a back-reference kept equal to its participant row.
// Only this package writes either side, always in one transaction.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"playroomserver/internal/database"
	"playroomserver/internal/events"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinPlayers        = 2
	MaxPlayers        = 8
	DefaultMaxPlayers = 4
)

// CreateRoomInput describes a new room. An empty FriendIDs adds a synthetic
// player; otherwise the friends are invited.
type CreateRoomInput struct {
	HostChildID      uuid.UUID   `json:"host_child_id"`
	GameID           string      `json:"game_id"`
	Difficulty       string      `json:"difficulty"`
	MaxPlayers       int         `json:"max_players"`
	FriendIDs        []uuid.UUID `json:"friend_ids"`
	SelectedCategory *string     `json:"selected_category"`
}

type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	events   events.Publisher
	codes    CodeGenerator
	personas []models.Persona
	rnd      Intn
	now      func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithCodeGenerator(g CodeGenerator) Option { return func(s *Service) { s.codes = g } }

// WithRand replaces the persona randomness. rnd must be safe for concurrent use.
func WithRand(rnd Intn) Option { return func(s *Service) { s.rnd = rnd } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(db *gorm.DB, logger *zap.Logger, personas []models.Persona, opts ...Option) *Service {
	s := &Service{
		db:       db,
		logger:   logger,
		events:   events.Nop{},
		codes:    RandomCodes{},
		personas: personas,
		rnd:      newLockedRand(time.Now().UnixNano()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom opens a waiting room hosted by in.HostChildID.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.GameRoom, error) {
	if in.MaxPlayers == 0 {
		in.MaxPlayers = DefaultMaxPlayers
	}
	if in.MaxPlayers < MinPlayers || in.MaxPlayers > MaxPlayers {
		return nil, ErrInvalidMaxPlayers
	}
	in.GameID, in.Difficulty = strings.TrimSpace(in.GameID), strings.TrimSpace(in.Difficulty)
	if in.GameID == "" || in.Difficulty == "" {
		return nil, ErrGameRequired
	}
	friendIDs := dedupe(in.FriendIDs, in.HostChildID)
	if len(in.FriendIDs) == 0 && len(s.personas) == 0 {
		return nil, ErrNoPersonas
	}

	var (
		room *models.GameRoom
		evs  []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		now := s.now().UTC()

		host, err := lockChild(tx, in.HostChildID)
		if err != nil {
			return err
		}
		if host.InRoom() {
			return ErrAlreadyInRoom
		}

		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}
		room = &models.GameRoom{
			RoomCode:         code,
			HostChildID:      host.ID,
			GameID:           in.GameID,
			Difficulty:       in.Difficulty,
			SelectedCategory: in.SelectedCategory,
			MaxPlayers:       in.MaxPlayers,
			CurrentPlayers:   1,
			Status:           models.RoomWaiting,
		}

		var synthetic *models.RoomParticipant
		if len(in.FriendIDs) == 0 {
			persona, _ := PickPersona(s.personas, s.rnd)
			synthetic = &models.RoomParticipant{
				PlayerName:   persona.Name,
				PlayerAvatar: persona.Avatar,
				Personality:  persona.Personality,
				IsSynthetic:  true,
				JoinedAt:     now,
			}
			room.CurrentPlayers = 2
			room.HasSyntheticPlayer = true
		}
		if err := tx.Create(room).Error; err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		participants := []models.RoomParticipant{{
			RoomID:       room.ID,
			ChildID:      &host.ID,
			PlayerName:   host.Name,
			PlayerAvatar: host.DisplayAvatar(),
			JoinedAt:     now,
		}}
		if synthetic != nil {
			synthetic.RoomID = room.ID
			participants = append(participants, *synthetic)
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		if err := tx.Model(&models.ChildProfile{}).Where("id = ?", host.ID).Update("room_id", room.ID).Error; err != nil {
			return err
		}
		room.Participants = participants

		evs = append(evs, events.RoomEvent{Type: events.RoomCreated, RoomID: room.ID, RoomCode: room.RoomCode, To: []uuid.UUID{host.ID}})

		if len(in.FriendIDs) > 0 {
			offers, err := s.createInvitations(tx, room, friendIDs, now)
			if err != nil {
				return err
			}
			// A friend list that invites nobody would leave the host alone.
			if len(offers) == 0 {
				return ErrNoFriendsFound
			}
			evs = append(evs, offerCreatedEvents(room, offers)...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.logger.Info("Room created",
		zap.String("room_id", room.ID.String()),
		zap.String("room_code", room.RoomCode),
		zap.String("host_child_id", room.HostChildID.String()),
		zap.Bool("synthetic", room.HasSyntheticPlayer),
	)
	s.publish(ctx, evs)
	return room, nil
}

func (s *Service) uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.codes.NewCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		var n int64
		if err := tx.Model(&models.GameRoom{}).Where("room_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// JoinRoom adds childID to the waiting room with the given code.
func (s *Service) JoinRoom(ctx context.Context, roomCode string, childID uuid.UUID) (*models.GameRoom, error) {
	var (
		room *models.GameRoom
		evs  []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		var err error
		room, err = lockOpenRoomByCode(tx, normalizeCode(roomCode))
		if err != nil {
			return err
		}
		if err := s.addParticipant(tx, room, childID); err != nil {
			return err
		}
		if err := loadParticipants(tx, room); err != nil {
			return err
		}
		evs = append(evs, joinedEvent(room, childID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	s.logger.Info("Child joined room", zap.String("room_code", room.RoomCode), zap.String("child_id", childID.String()))
	s.publish(ctx, evs)
	return room, nil
}

// addParticipant checks membership and capacity against the locked room and
// inserts childID. Join, approve and accept all go through here so the
// checks and the insert share one transaction.
func (s *Service) addParticipant(tx *gorm.DB, room *models.GameRoom, childID uuid.UUID) error {
	if !room.IsOpen() {
		return ErrRoomNotFound
	}
	child, err := lockChild(tx, childID)
	if err != nil {
		return err
	}
	if child.InRoom() {
		return ErrAlreadyInRoom
	}
	if room.IsFull() {
		return ErrRoomFull
	}

	p := models.RoomParticipant{
		RoomID:       room.ID,
		ChildID:      &child.ID,
		PlayerName:   child.Name,
		PlayerAvatar: child.DisplayAvatar(),
		JoinedAt:     s.now().UTC(),
	}
	if err := tx.Create(&p).Error; err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if err := tx.Model(&models.GameRoom{}).Where("id = ?", room.ID).
		Update("current_players", gorm.Expr("current_players + ?", 1)).Error; err != nil {
		return err
	}
	room.CurrentPlayers++
	return tx.Model(&models.ChildProfile{}).Where("id = ?", child.ID).Update("room_id", room.ID).Error
}

// LeaveRoom removes childID from its room. The host leaving closes the room.
func (s *Service) LeaveRoom(ctx context.Context, childID uuid.UUID) error {
	var (
		evs    []events.RoomEvent
		closed bool
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs, closed = nil, false
		for attempt := 0; attempt < 3; attempt++ {
			child, err := findChild(tx, childID)
			if err != nil {
				return err
			}
			if !child.InRoom() {
				return ErrNotInRoom
			}
			roomID := *child.RoomID

			room, err := lockRoom(tx, roomID)
			if errors.Is(err, ErrRoomNotFound) {
				// The room vanished under the reference; drop the reference.
				return tx.Model(&models.ChildProfile{}).
					Where("id = ? AND room_id = ?", childID, roomID).
					Update("room_id", nil).Error
			}
			if err != nil {
				return err
			}

			if room.HostChildID == childID {
				recipients, err := s.teardown(tx, room)
				if err != nil {
					return err
				}
				closed = true
				evs = append(evs, events.RoomEvent{Type: events.RoomClosed, RoomID: room.ID, RoomCode: room.RoomCode, To: recipients})
				return nil
			}

			locked, err := lockChild(tx, childID)
			if err != nil {
				return err
			}
			if locked.RoomID == nil || *locked.RoomID != roomID {
				// Moved between the read and the lock.
				continue
			}
			res := tx.Where("room_id = ? AND child_id = ?", roomID, childID).Delete(&models.RoomParticipant{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				if err := tx.Model(&models.GameRoom{}).Where("id = ?", roomID).
					Update("current_players", gorm.Expr("current_players - ?", res.RowsAffected)).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&models.ChildProfile{}).Where("id = ?", childID).Update("room_id", nil).Error; err != nil {
				return err
			}

			if err := loadParticipants(tx, room); err != nil {
				return err
			}
			evs = append(evs, events.RoomEvent{
				Type:     events.ParticipantLeft,
				RoomID:   room.ID,
				RoomCode: room.RoomCode,
				ChildID:  &childID,
				To:       append(humanIDs(room.Participants), childID),
			})
			return nil
		}
		return fmt.Errorf("room membership kept changing for child %s", childID)
	})
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}

	s.logger.Info("Child left room", zap.String("child_id", childID.String()), zap.Bool("room_closed", closed))
	s.publish(ctx, evs)
	return nil
}

// CloseRoom tears the room down.
func (s *Service) CloseRoom(ctx context.Context, roomID uuid.UUID) error {
	var evs []events.RoomEvent
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		recipients, err := s.teardown(tx, room)
		if err != nil {
			return err
		}
		evs = append(evs, events.RoomEvent{Type: events.RoomClosed, RoomID: room.ID, RoomCode: room.RoomCode, To: recipients})
		return nil
	})
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}

	s.logger.Info("Room closed", zap.String("room_id", roomID.String()))
	s.publish(ctx, evs)
	return nil
}

// teardown clears every back-reference, deletes the roster, cancels pending
// offers and deletes the locked room. It returns the children to notify.
func (s *Service) teardown(tx *gorm.DB, room *models.GameRoom) ([]uuid.UUID, error) {
	now := s.now().UTC()

	var members []models.ChildProfile
	if err := database.ForUpdate(tx).Where("room_id = ?", room.ID).Find(&members).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.ChildProfile{}).Where("room_id = ?", room.ID).Update("room_id", nil).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("room_id = ?", room.ID).Delete(&models.RoomParticipant{}).Error; err != nil {
		return nil, err
	}

	var pending []models.RoomOffer
	if err := database.ForUpdate(tx).Where("room_id = ? AND status = ?", room.ID, models.OfferPending).Find(&pending).Error; err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		if err := tx.Model(&models.RoomOffer{}).Where("room_id = ? AND status = ?", room.ID, models.OfferPending).
			Updates(map[string]interface{}{"status": models.OfferCancelled, "resolved_at": now}).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Delete(&models.GameRoom{}, "id = ?", room.ID).Error; err != nil {
		return nil, err
	}

	recipients := make([]uuid.UUID, 0, len(members)+len(pending))
	for _, m := range members {
		recipients = append(recipients, m.ID)
	}
	for _, o := range pending {
		recipients = append(recipients, o.ChildID)
	}
	return recipients, nil
}

// StartRoom moves a waiting room in progress. It stops accepting players.
func (s *Service) StartRoom(ctx context.Context, roomID uuid.UUID) (*models.GameRoom, error) {
	var (
		room *models.GameRoom
		evs  []events.RoomEvent
	)
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		evs = nil
		var err error
		room, err = lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomNotWaiting
		}
		if err := tx.Model(room).Update("status", models.RoomInProgress).Error; err != nil {
			return err
		}
		room.Status = models.RoomInProgress
		if err := loadParticipants(tx, room); err != nil {
			return err
		}
		evs = append(evs, events.RoomEvent{Type: events.RoomStarted, RoomID: room.ID, RoomCode: room.RoomCode, To: humanIDs(room.Participants)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start room: %w", err)
	}
	s.publish(ctx, evs)
	return room, nil
}

// CurrentRoom returns the room of childID, or nil when it has none. A
// reference to a room that no longer exists is cleared.
func (s *Service) CurrentRoom(ctx context.Context, childID uuid.UUID) (*models.GameRoom, error) {
	var room *models.GameRoom
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		room = nil
		child, err := findChild(tx, childID)
		if err != nil {
			return err
		}
		if !child.InRoom() {
			return nil
		}

		var found models.GameRoom
		err = tx.First(&found, "id = ?", *child.RoomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Clearing dangling room reference",
				zap.String("child_id", childID.String()),
				zap.String("room_id", child.RoomID.String()))
			return tx.Model(&models.ChildProfile{}).
				Where("id = ? AND room_id = ?", childID, *child.RoomID).
				Update("room_id", nil).Error
		}
		if err != nil {
			return err
		}
		if err := loadParticipants(tx, &found); err != nil {
			return err
		}
		room = &found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("current room: %w", err)
	}
	return room, nil
}

// RoomByCode returns the room with its roster.
func (s *Service) RoomByCode(ctx context.Context, code string) (*models.GameRoom, error) {
	var room models.GameRoom
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.Where("room_code = ?", normalizeCode(code)).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return loadParticipants(tx, &room)
	})
	if err != nil {
		return nil, fmt.Errorf("room by code: %w", err)
	}
	return &room, nil
}

func (s *Service) Participants(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	var room models.GameRoom
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.First(&room, "id = ?", roomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return loadParticipants(tx, &room)
	})
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	return room.Participants, nil
}

// RoomRef names a room directly, by code, or through one of its offers.
type RoomRef struct {
	RoomID   *uuid.UUID
	RoomCode string
	OfferID  *uuid.UUID
}

// HostChild returns the host of the referenced room.
func (s *Service) HostChild(ctx context.Context, ref RoomRef) (uuid.UUID, error) {
	if ref.RoomID == nil && ref.RoomCode == "" && ref.OfferID == nil {
		return uuid.Nil, ErrEmptyRef
	}

	var room models.GameRoom
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var err error
		switch {
		case ref.RoomID != nil:
			err = tx.First(&room, "id = ?", *ref.RoomID).Error
		case ref.RoomCode != "":
			err = tx.Where("room_code = ?", normalizeCode(ref.RoomCode)).First(&room).Error
		default:
			offer, ferr := findOffer(tx, *ref.OfferID)
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return ErrJoinRequestNotFound
			}
			if ferr != nil {
				return ferr
			}
			err = tx.First(&room, "id = ?", offer.RoomID).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("host child: %w", err)
	}
	return room.HostChildID, nil
}

func (s *Service) publish(ctx context.Context, evs []events.RoomEvent) {
	now := s.now().UTC()
	for _, ev := range evs {
		ev.At = now
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn("Failed to publish room event", zap.String("type", ev.Type), zap.Error(err))
		}
	}
}

func joinedEvent(room *models.GameRoom, childID uuid.UUID) events.RoomEvent {
	return events.RoomEvent{
		Type:     events.ParticipantJoined,
		RoomID:   room.ID,
		RoomCode: room.RoomCode,
		ChildID:  &childID,
		To:       humanIDs(room.Participants),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
