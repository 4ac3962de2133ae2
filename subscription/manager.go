package subscription

import (
	"context"
	"errors"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the write side of the subscription table used by the Reconciler
type Store interface {
	// Create inserts sub. It reports false without error when a row with the same
	// StripeSubscriptionID already exists.
	Create(ctx context.Context, sub *UserSubscription) (bool, error)
	// UpdateStatus sets the status of the row matching subscriptionID and returns
	// the number of rows affected.
	UpdateStatus(ctx context.Context, subscriptionID string, status Status) (int64, error)
	// Cancel marks the row matching subscriptionID as canceled at the given time
	Cancel(ctx context.Context, subscriptionID string, at time.Time) (int64, error)
}

// Manager handles the database operations relating to UserSubscription
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = &Manager{}

// NewManager returns a new Manager for subscriptions
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("nil Logger is invalid")
	}
	if db == nil {
		return nil, errors.New("nil DB is invalid")
	}
	if err := db.AutoMigrate(&UserSubscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize subscription.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create relies on the unique index on stripe_subscription_id so that a
// redelivered checkout event cannot insert a second row.
func (m *Manager) Create(ctx context.Context, sub *UserSubscription) (bool, error) {
	result := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoNothing: true,
		}).
		Create(sub)
	if result.Error != nil {
		m.logger.Error("Unable to create new subscription in database",
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot create subscription")
	}
	return result.RowsAffected > 0, nil
}

func (m *Manager) UpdateStatus(ctx context.Context, subscriptionID string, status Status) (int64, error) {
	result := m.db.WithContext(ctx).
		Model(&UserSubscription{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Update("status", status)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot update subscription status")
	}
	return result.RowsAffected, nil
}

func (m *Manager) Cancel(ctx context.Context, subscriptionID string, at time.Time) (int64, error) {
	result := m.db.WithContext(ctx).
		Model(&UserSubscription{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"status":      StatusCanceled,
			"canceled_at": at,
		})
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot cancel subscription")
	}
	return result.RowsAffected, nil
}

// GetLatestByUser returns the most recently created subscription of the user,
// or nil if there is none
func (m *Manager) GetLatestByUser(ctx context.Context, userID string) (*UserSubscription, error) {
	var sub UserSubscription

	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&sub)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by user id")
	}

	return &sub, nil
}

// HasActive reports whether the user has at least one active subscription
func (m *Manager) HasActive(ctx context.Context, userID string) (bool, error) {
	var count int64
	result := m.db.WithContext(ctx).
		Model(&UserSubscription{}).
		Where("user_id = ? AND status = ?", userID, StatusActive).
		Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot check active subscription")
	}
	return count > 0, nil
}
