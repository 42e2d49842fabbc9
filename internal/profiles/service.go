// Package profiles stores parent and child profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"playroomserver/internal/apperr"
	"playroomserver/internal/auth"
	"playroomserver/internal/database"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrParentNotFound = fmt.Errorf("%w: parent profile not found", apperr.ErrNotFound)
	ErrChildNotFound  = fmt.Errorf("%w: child profile not found", apperr.ErrNotFound)
	ErrNotOwner       = fmt.Errorf("%w: child belongs to another parent", apperr.ErrForbidden)
	ErrChildInRoom    = fmt.Errorf("%w: child is in a room, leave it first", apperr.ErrConflict)
	ErrNameRequired   = fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	ErrAgeRequired    = fmt.Errorf("%w: age_group is required", apperr.ErrInvalid)
)

// ChildInput creates a child profile.
type ChildInput struct {
	Name     string `json:"name" binding:"required"`
	AgeGroup string `json:"age_group" binding:"required"`
	Avatar   string `json:"avatar"`
}

// ChildUpdate changes the non-nil fields of a child profile.
type ChildUpdate struct {
	Name              *string `json:"name"`
	AgeGroup          *string `json:"age_group"`
	Avatar            *string `json:"avatar"`
	VoiceCloneEnabled *bool   `json:"voice_clone_enabled"`
	VoiceID           *string `json:"voice_id"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// EnsureParent returns the parent of the identity, creating it on first use
// and refreshing email and name afterwards.
func (s *Service) EnsureParent(ctx context.Context, id auth.Identity, name string) (*models.ParentProfile, error) {
	var parent models.ParentProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.Where("auth0_user_id = ?", id.UserID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			parent = models.ParentProfile{Auth0UserID: id.UserID, Email: id.Email, Name: name}
			return tx.Create(&parent).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if id.Email != "" && id.Email != parent.Email {
			updates["email"] = id.Email
		}
		if name != "" && name != parent.Name {
			updates["name"] = name
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&parent).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&parent, "id = ?", parent.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure parent: %w", err)
	}
	return &parent, nil
}

// ParentFor looks up the parent of the identity.
func (s *Service) ParentFor(ctx context.Context, id auth.Identity) (*models.ParentProfile, error) {
	var parent models.ParentProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.Where("auth0_user_id = ?", id.UserID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParentNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find parent: %w", err)
	}
	return &parent, nil
}

func (s *Service) CreateChild(ctx context.Context, parentID uuid.UUID, in ChildInput) (*models.ChildProfile, error) {
	name, age := strings.TrimSpace(in.Name), strings.TrimSpace(in.AgeGroup)
	if name == "" {
		return nil, ErrNameRequired
	}
	if age == "" {
		return nil, ErrAgeRequired
	}

	child := models.ChildProfile{ParentID: parentID, Name: name, AgeGroup: age, Avatar: in.Avatar}
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ParentProfile{}).Where("id = ?", parentID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrParentNotFound
		}
		return tx.Create(&child).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create child: %w", err)
	}
	s.logger.Info("Child profile created", zap.String("child_id", child.ID.String()), zap.String("parent_id", parentID.String()))
	return &child, nil
}

func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ChildProfile, error) {
	var children []models.ChildProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("parent_id = ?", parentID).Order("created_at").Find(&children).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

func (s *Service) GetChild(ctx context.Context, childID uuid.UUID) (*models.ChildProfile, error) {
	var child models.ChildProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.First(&child, "id = ?", childID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChildNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return &child, nil
}

// OwnsChild checks that childID belongs to parentID.
func (s *Service) OwnsChild(ctx context.Context, parentID, childID uuid.UUID) error {
	child, err := s.GetChild(ctx, childID)
	if err != nil {
		return err
	}
	if child.ParentID != parentID {
		return ErrNotOwner
	}
	return nil
}

func (s *Service) UpdateChild(ctx context.Context, childID uuid.UUID, in ChildUpdate) (*models.ChildProfile, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = name
	}
	if in.AgeGroup != nil {
		age := strings.TrimSpace(*in.AgeGroup)
		if age == "" {
			return nil, ErrAgeRequired
		}
		updates["age_group"] = age
	}
	if in.Avatar != nil {
		updates["avatar"] = *in.Avatar
	}
	if in.VoiceCloneEnabled != nil {
		updates["voice_clone_enabled"] = *in.VoiceCloneEnabled
	}
	if in.VoiceID != nil {
		updates["voice_id"] = *in.VoiceID
	}

	var child models.ChildProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&child, "id = ?", childID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChildNotFound
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&child).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&child, "id = ?", childID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return &child, nil
}

// DeleteChild removes a child that is not in a room.
func (s *Service) DeleteChild(ctx context.Context, childID uuid.UUID) error {
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var child models.ChildProfile
		if err := database.ForUpdate(tx).First(&child, "id = ?", childID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChildNotFound
			}
			return err
		}
		if child.InRoom() {
			return ErrChildInRoom
		}
		if err := tx.Where("child_id = ? AND status = ?", childID, models.OfferPending).
			Delete(&models.RoomOffer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("requester_id = ? OR addressee_id = ?", childID, childID).
			Delete(&models.Friend{}).Error; err != nil {
			return err
		}
		if err := tx.Where("child_id = ?", childID).Delete(&models.GeneratedStory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&child).Error
	})
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	s.logger.Info("Child profile deleted", zap.String("child_id", childID.String()))
	return nil
}

// SetOnline updates the presence flag and stamps last_seen_at.
func (s *Service) SetOnline(ctx context.Context, childID uuid.UUID, online bool) (*models.ChildProfile, error) {
	var child models.ChildProfile
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		if err := tx.First(&child, "id = ?", childID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChildNotFound
			}
			return err
		}
		now := s.now().UTC()
		if err := tx.Model(&child).Updates(map[string]interface{}{
			"is_online":    online,
			"last_seen_at": now,
		}).Error; err != nil {
			return err
		}
		child.IsOnline, child.LastSeenAt = online, &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set online: %w", err)
	}
	return &child, nil
}
