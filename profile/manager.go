package profile

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes user profiles
type Store interface {
	GetByUser(ctx context.Context, userID string) (*UserProfile, error)
	Upsert(ctx context.Context, p *UserProfile) (*UserProfile, error)
}

// Manager handles the database operations relating to UserProfile
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = &Manager{}

// NewManager returns a new Manager for profiles
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("nil Logger is invalid")
	}
	if db == nil {
		return nil, errors.New("nil DB is invalid")
	}
	if err := db.AutoMigrate(&UserProfile{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize profile.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// GetByUser will try to return the profile of the user, or nil if there is none
func (m *Manager) GetByUser(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile

	result := m.db.WithContext(ctx).First(&p, "user_id = ?", userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get profile by user id")
	}

	return &p, nil
}

// Upsert creates the profile of p.UserID or overwrites its editable fields,
// then returns the stored row
func (m *Manager) Upsert(ctx context.Context, p *UserProfile) (*UserProfile, error) {
	result := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name",
				"age",
				"gender",
				"skin_type",
				"main_concerns",
				"experience_level",
				"avatar_url",
				"updated_at",
			}),
		}).
		Create(p)
	if result.Error != nil {
		m.logger.Error("Unable to upsert profile in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot save profile")
	}

	stored, err := m.GetByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, extErrors.New("Profile missing after upsert")
	}
	return stored, nil
}
