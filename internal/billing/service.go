// Package billing records the voice cloning subscription of each parent.
// Payment itself happens at the provider; this package only keeps the
// status the provider reported.
package billing

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
	ErrParentNotFound       = fmt.Errorf("%w: parent profile not found", apperr.ErrNotFound)
	ErrSubscriptionNotFound = fmt.Errorf("%w: no subscription found", apperr.ErrNotFound)
	ErrSubscriptionRequired = fmt.Errorf("%w: active subscription required for voice cloning", apperr.ErrForbidden)
	ErrInvalidStatus        = fmt.Errorf("%w: unknown subscription status", apperr.ErrInvalid)
	ErrFieldsRequired       = fmt.Errorf("%w: stripe_subscription_id and plan_type are required", apperr.ErrInvalid)
)

// SubscriptionInput is what the payment provider reported for a parent.
type SubscriptionInput struct {
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	StripeCustomerID     string `json:"stripe_customer_id"`
	Status               string `json:"status"`
	PlanType             string `json:"plan_type"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func validStatus(s string) bool {
	switch s {
	case models.SubscriptionActive, models.SubscriptionInactive, models.SubscriptionPastDue, models.SubscriptionCancelled:
		return true
	}
	return false
}

// Upsert creates the subscription of parentID or overwrites the existing one.
func (s *Service) Upsert(ctx context.Context, parentID uuid.UUID, in SubscriptionInput) (*models.VoiceSubscription, error) {
	in.StripeSubscriptionID = strings.TrimSpace(in.StripeSubscriptionID)
	in.PlanType = strings.TrimSpace(in.PlanType)
	if in.StripeSubscriptionID == "" || in.PlanType == "" {
		return nil, ErrFieldsRequired
	}
	if !validStatus(in.Status) {
		return nil, ErrInvalidStatus
	}

	var sub models.VoiceSubscription
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ParentProfile{}).Where("id = ?", parentID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrParentNotFound
		}

		err := database.ForUpdate(tx).Where("parent_id = ?", parentID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = models.VoiceSubscription{
				ParentID:             parentID,
				StripeSubscriptionID: in.StripeSubscriptionID,
				StripeCustomerID:     in.StripeCustomerID,
				Status:               in.Status,
				PlanType:             in.PlanType,
			}
			return tx.Create(&sub).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"stripe_subscription_id": in.StripeSubscriptionID,
			"status":                 in.Status,
			"plan_type":              in.PlanType,
		}
		if in.StripeCustomerID != "" {
			updates["stripe_customer_id"] = in.StripeCustomerID
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("parent_id = ?", parentID).First(&sub).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert voice subscription: %w", err)
	}
	s.logger.Info("Voice subscription saved",
		zap.String("parent_id", parentID.String()),
		zap.String("status", sub.Status),
		zap.String("plan_type", sub.PlanType))
	return &sub, nil
}

func (s *Service) Get(ctx context.Context, parentID uuid.UUID) (*models.VoiceSubscription, error) {
	var sub models.VoiceSubscription
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		err := tx.Where("parent_id = ?", parentID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get voice subscription: %w", err)
	}
	return &sub, nil
}

// Cancel marks the subscription cancelled. The row stays for the history.
func (s *Service) Cancel(ctx context.Context, parentID uuid.UUID) error {
	err := database.Transaction(ctx, s.db, s.logger, func(tx *gorm.DB) error {
		var sub models.VoiceSubscription
		if err := database.ForUpdate(tx).Where("parent_id = ?", parentID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}
		return tx.Model(&sub).Update("status", models.SubscriptionCancelled).Error
	})
	if err != nil {
		return fmt.Errorf("cancel voice subscription: %w", err)
	}
	s.logger.Info("Voice subscription cancelled", zap.String("parent_id", parentID.String()))
	return nil
}

// RequireActive fails with ErrSubscriptionRequired unless parentID holds an
// active subscription.
func (s *Service) RequireActive(ctx context.Context, parentID uuid.UUID) error {
	sub, err := s.Get(ctx, parentID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return ErrSubscriptionRequired
	}
	if err != nil {
		return err
	}
	if !sub.IsActive() {
		return ErrSubscriptionRequired
	}
	return nil
}
