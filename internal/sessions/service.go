// Package sessions records played game sessions and scores.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"playroomserver/internal/apperr"
	"playroomserver/internal/database"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrRoomNotFound    = fmt.Errorf("%w: room not found", apperr.ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session not found", apperr.ErrNotFound)
	ErrInvalidState    = fmt.Errorf("%w: game_state must be active, paused or finished", apperr.ErrInvalid)
	ErrInvalidGameData = fmt.Errorf("%w: game_data must be a JSON object", apperr.ErrInvalid)
	ErrInvalidScore    = fmt.Errorf("%w: score fields must not be negative", apperr.ErrInvalid)
	ErrPlayerRequired  = fmt.Errorf("%w: player_name is required", apperr.ErrInvalid)
)

// SessionUpdate changes the non-nil fields of a session.
type SessionUpdate struct {
	GameData            json.RawMessage `json:"game_data"`
	CurrentTurnPlayerID *uuid.UUID      `json:"current_turn_player_id"`
	GameState           *string         `json:"game_state"`
}

// ScoreInput is one player's result.
type ScoreInput struct {
	RoomID           uuid.UUID  `json:"room_id"`
	SessionID        *uuid.UUID `json:"session_id"`
	ChildID          *uuid.UUID `json:"child_id"`
	PlayerName       string     `json:"player_name"`
	PlayerAvatar     string     `json:"player_avatar"`
	IsSynthetic      bool       `json:"is_synthetic"`
	Score            int        `json:"score"`
	TotalQuestions   int        `json:"total_questions"`
	CorrectAnswers   int        `json:"correct_answers"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// CreateSession starts a session in an existing room.
func (s *Service) CreateSession(ctx context.Context, roomID uuid.UUID, gameData json.RawMessage) (*models.GameSession, error) {
	data, err := objectJSON(gameData)
	if err != nil {
		return nil, err
	}
	session := models.GameSession{RoomID: roomID, GameData: data, GameState: models.SessionActive}
	err = database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := touchRoom(tx, roomID, s.now().UTC()); err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("Game session created", zap.String("session_id", session.ID.String()), zap.String("room_id", roomID.String()))
	return &session, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	var session models.GameSession
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return findSession(tx, sessionID, &session)
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func findSession(tx *gorm.DB, sessionID uuid.UUID, session *models.GameSession) error {
	err := tx.First(session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	return err
}

func (s *Service) UpdateSession(ctx context.Context, sessionID uuid.UUID, in SessionUpdate) (*models.GameSession, error) {
	updates := map[string]interface{}{}
	if in.GameData != nil {
		data, err := objectJSON(in.GameData)
		if err != nil {
			return nil, err
		}
		updates["game_data"] = data
	}
	if in.CurrentTurnPlayerID != nil {
		updates["current_turn_player_id"] = *in.CurrentTurnPlayerID
	}
	if in.GameState != nil {
		switch *in.GameState {
		case models.SessionActive, models.SessionPaused, models.SessionFinished:
			updates["game_state"] = *in.GameState
		default:
			return nil, ErrInvalidState
		}
	}

	var session models.GameSession
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := findSession(database.ForUpdate(tx), sessionID, &session); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		// Sessions outlive their room, so a missing room is fine here.
		if err := touchRoom(tx, session.RoomID, s.now().UTC()); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
		if err := tx.Model(&session).Updates(updates).Error; err != nil {
			return err
		}
		return findSession(tx, sessionID, &session)
	})
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &session, nil
}

// RecordScore appends a score for a room.
func (s *Service) RecordScore(ctx context.Context, in ScoreInput) (*models.GameScore, error) {
	if in.PlayerName == "" {
		return nil, ErrPlayerRequired
	}
	if in.Score < 0 || in.TotalQuestions < 0 || in.CorrectAnswers < 0 || in.TimeSpentSeconds < 0 {
		return nil, ErrInvalidScore
	}
	score := models.GameScore{
		RoomID:           in.RoomID,
		SessionID:        in.SessionID,
		ChildID:          in.ChildID,
		PlayerName:       in.PlayerName,
		PlayerAvatar:     in.PlayerAvatar,
		IsSynthetic:      in.IsSynthetic,
		Score:            in.Score,
		TotalQuestions:   in.TotalQuestions,
		CorrectAnswers:   in.CorrectAnswers,
		TimeSpentSeconds: in.TimeSpentSeconds,
	}
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := touchRoom(tx, in.RoomID, s.now().UTC()); err != nil {
			return err
		}
		return tx.Create(&score).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}
	return &score, nil
}

// RoomScores lists the scores of a room, best first.
func (s *Service) RoomScores(ctx context.Context, roomID uuid.UUID) ([]models.GameScore, error) {
	var scores []models.GameScore
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("room_id = ?", roomID).Order("score DESC, created_at").Find(&scores).Error
	})
	if err != nil {
		return nil, fmt.Errorf("room scores: %w", err)
	}
	return scores, nil
}

// touchRoom records activity on the room so the stale room sweep keeps it.
func touchRoom(tx *gorm.DB, roomID uuid.UUID, now time.Time) error {
	res := tx.Model(&models.GameRoom{}).Where("id = ?", roomID).UpdateColumn("updated_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func objectJSON(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}"), nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrInvalidGameData
	}
	return datatypes.JSON(raw), nil
}
