package progress

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store records and lists completions
type Store interface {
	Record(ctx context.Context, c *Completion) error
	ListByUser(ctx context.Context, userID string) ([]Completion, error)
}

// Manager handles the database operations relating to Completion
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = &Manager{}

// NewManager returns a new Manager for exercise completions
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("nil Logger is invalid")
	}
	if db == nil {
		return nil, errors.New("nil DB is invalid")
	}
	if err := db.AutoMigrate(&Completion{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize progress.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

func (m *Manager) Record(ctx context.Context, c *Completion) error {
	result := m.db.WithContext(ctx).Create(c)
	if result.Error != nil {
		m.logger.Error("Unable to record completion in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot record completion")
	}
	return nil
}

// ListByUser returns every completion of the user, oldest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Completion, error) {
	completions := make([]Completion, 0)

	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at asc").
		Find(&completions)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list completions")
	}

	return completions, nil
}
