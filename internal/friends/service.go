// Package friends manages friendships between children.
package friends

import (
	"context"
	"errors"
	"fmt"

	"playroomserver/internal/apperr"
	"playroomserver/internal/database"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrChildNotFound      = fmt.Errorf("%w: child not found", apperr.ErrNotFound)
	ErrRequestNotFound    = fmt.Errorf("%w: friend request not found", apperr.ErrNotFound)
	ErrFriendshipNotFound = fmt.Errorf("%w: friendship not found", apperr.ErrNotFound)
	ErrAlreadyExists      = fmt.Errorf("%w: friend request already exists", apperr.ErrConflict)
	ErrNotPending         = fmt.Errorf("%w: friend request is not pending", apperr.ErrConflict)
	ErrSelf               = fmt.Errorf("%w: cannot befriend yourself", apperr.ErrInvalid)
)

// FriendView is an accepted friend with the profile fields a child may see.
type FriendView struct {
	FriendshipID uuid.UUID  `json:"friendship_id"`
	ChildID      uuid.UUID  `json:"child_id"`
	Name         string     `json:"name"`
	Avatar       string     `json:"avatar"`
	AgeGroup     string     `json:"age_group"`
	IsOnline     bool       `json:"is_online"`
	RoomID       *uuid.UUID `json:"room_id"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// SendRequest asks addresseeID to become a friend of requesterID.
func (s *Service) SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.Friend, error) {
	if requesterID == addresseeID {
		return nil, ErrSelf
	}
	req := models.Friend{RequesterID: requesterID, AddresseeID: addresseeID, Status: models.FriendPending}
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ChildProfile{}).Where("id IN ?", []uuid.UUID{requesterID, addresseeID}).Count(&n).Error; err != nil {
			return err
		}
		if n != 2 {
			return ErrChildNotFound
		}
		if err := tx.Model(&models.Friend{}).
			Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
				requesterID, addresseeID, addresseeID, requesterID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, fmt.Errorf("send friend request: %w", err)
	}
	return &req, nil
}

// Accept accepts a pending request addressed to addresseeID.
func (s *Service) Accept(ctx context.Context, requestID, addresseeID uuid.UUID) (*models.Friend, error) {
	var req models.Friend
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := s.incoming(database.ForUpdate(tx), requestID, addresseeID, &req); err != nil {
			return err
		}
		if req.Status != models.FriendPending {
			return ErrNotPending
		}
		if err := tx.Model(&req).Update("status", models.FriendAccepted).Error; err != nil {
			return err
		}
		req.Status = models.FriendAccepted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept friend request: %w", err)
	}
	s.logger.Info("Friend request accepted", zap.String("request_id", requestID.String()))
	return &req, nil
}

// Decline deletes a pending request addressed to addresseeID.
func (s *Service) Decline(ctx context.Context, requestID, addresseeID uuid.UUID) error {
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var req models.Friend
		if err := s.incoming(database.ForUpdate(tx), requestID, addresseeID, &req); err != nil {
			return err
		}
		if req.Status != models.FriendPending {
			return ErrNotPending
		}
		return tx.Delete(&req).Error
	})
	if err != nil {
		return fmt.Errorf("decline friend request: %w", err)
	}
	return nil
}

func (s *Service) incoming(tx *gorm.DB, requestID, addresseeID uuid.UUID, req *models.Friend) error {
	err := tx.Where("id = ? AND addressee_id = ?", requestID, addresseeID).First(req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRequestNotFound
	}
	return err
}

// List returns the accepted friends of childID.
func (s *Service) List(ctx context.Context, childID uuid.UUID) ([]FriendView, error) {
	var out []FriendView
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var links []models.Friend
		if err := tx.Where("(requester_id = ? OR addressee_id = ?) AND status = ?", childID, childID, models.FriendAccepted).
			Find(&links).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(links))
		linkOf := make(map[uuid.UUID]uuid.UUID, len(links))
		for i := range links {
			other := links[i].Other(childID)
			ids = append(ids, other)
			linkOf[other] = links[i].ID
		}
		var children []models.ChildProfile
		if err := tx.Where("id IN ?", ids).Order("name").Find(&children).Error; err != nil {
			return err
		}
		out = make([]FriendView, 0, len(children))
		for _, c := range children {
			out = append(out, FriendView{
				FriendshipID: linkOf[c.ID],
				ChildID:      c.ID,
				Name:         c.Name,
				Avatar:       c.DisplayAvatar(),
				AgeGroup:     c.AgeGroup,
				IsOnline:     c.IsOnline,
				RoomID:       c.RoomID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return out, nil
}

// Pending returns the requests waiting for childID to answer.
func (s *Service) Pending(ctx context.Context, childID uuid.UUID) ([]models.Friend, error) {
	var reqs []models.Friend
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("addressee_id = ? AND status = ?", childID, models.FriendPending).
			Order("created_at").Find(&reqs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("pending friend requests: %w", err)
	}
	return reqs, nil
}

// Remove ends the friendship between childID and friendID.
func (s *Service) Remove(ctx context.Context, childID, friendID uuid.UUID) error {
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		res := tx.Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			childID, friendID, friendID, childID).
			Delete(&models.Friend{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrFriendshipNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

// AreFriends reports whether an accepted friendship links a and b.
func (s *Service) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var n int64
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Model(&models.Friend{}).
			Where("((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)) AND status = ?",
				a, b, b, a, models.FriendAccepted).
			Count(&n).Error
	})
	if err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return n > 0, nil
}
