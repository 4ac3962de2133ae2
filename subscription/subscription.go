package subscription

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserSubscription is the persisted state of a user's Stripe subscription. Rows
// are only created by a completed checkout and are never deleted.
type UserSubscription struct {
	ID                   string     `json:"id" gorm:"primaryKey;type:uuid"`
	UserID               string     `json:"userId" gorm:"not null;index"`             // Owned by the hosted auth service
	PlanType             PlanType   `json:"planType" gorm:"not null"`                 // monthly or annual
	Status               Status     `json:"status" gorm:"not null;index"`             // As reported by Stripe
	StripeCustomerID     string     `json:"stripeCustomerId"`                         // Corresponds to Stripe's Customer ID
	StripeSubscriptionID *string    `json:"stripeSubscriptionId" gorm:"uniqueIndex"` // Corresponds to Stripe's Subscription ID
	StartedAt            time.Time  `json:"startedAt"`
	CanceledAt           *time.Time `json:"canceledAt"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// TableName pins the table name shared with the hosted database
func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

// BeforeCreate assigns a UUID when none is set
func (s *UserSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
