package models

import "github.com/google/uuid"

const (
	SubscriptionActive    = "active"
	SubscriptionInactive  = "inactive"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

// VoiceSubscription is the voice cloning plan of a parent. There is at most
// one per parent; cancelling keeps the row.
type VoiceSubscription struct {
	Base
	ParentID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"parent_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	StripeCustomerID     string    `json:"stripe_customer_id,omitempty"`
	Status               string    `gorm:"size:16;not null;default:'inactive'" json:"status"`
	PlanType             string    `gorm:"size:32;not null;default:'basic'" json:"plan_type"`
}

func (v *VoiceSubscription) IsActive() bool { return v.Status == SubscriptionActive }
