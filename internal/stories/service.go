// Package stories keeps the stories generated for children.
package stories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"playroomserver/internal/apperr"
	"playroomserver/internal/database"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrChildNotFound = fmt.Errorf("%w: child not found", apperr.ErrNotFound)
	ErrStoryNotFound = fmt.Errorf("%w: story not found", apperr.ErrNotFound)
	ErrEmptyStory    = fmt.Errorf("%w: title and content are required", apperr.ErrInvalid)
)

type StoryInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	AudioURL string `json:"audio_url"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func (s *Service) Create(ctx context.Context, childID uuid.UUID, in StoryInput) (*models.GeneratedStory, error) {
	in.Title, in.Content = strings.TrimSpace(in.Title), strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, ErrEmptyStory
	}
	story := models.GeneratedStory{ChildID: childID, Title: in.Title, Content: in.Content, AudioURL: in.AudioURL}
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ChildProfile{}).Where("id = ?", childID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrChildNotFound
		}
		return tx.Create(&story).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return &story, nil
}

// List returns the stories of childID, newest first.
func (s *Service) List(ctx context.Context, childID uuid.UUID) ([]models.GeneratedStory, error) {
	var out []models.GeneratedStory
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		return tx.Where("child_id = ?", childID).Order("created_at DESC").Find(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, childID, storyID uuid.UUID) (*models.GeneratedStory, error) {
	var story models.GeneratedStory
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND child_id = ?", storyID, childID).First(&story).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStoryNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return &story, nil
}

func (s *Service) Delete(ctx context.Context, childID, storyID uuid.UUID) error {
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND child_id = ?", storyID, childID).Delete(&models.GeneratedStory{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStoryNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	return nil
}
