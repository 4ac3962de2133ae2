package exercise

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Catalog reads exercises
type Catalog interface {
	List(ctx context.Context, difficulty Difficulty) ([]Exercise, error)
	Get(ctx context.Context, id string) (*Exercise, error)
}

// Manager handles the database operations relating to Exercise
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Catalog = &Manager{}

// NewManager returns a new Manager for the exercise catalog
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("nil Logger is invalid")
	}
	if db == nil {
		return nil, errors.New("nil DB is invalid")
	}
	if err := db.AutoMigrate(&Exercise{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize exercise.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// List returns the catalog in display order, optionally narrowed to one difficulty
func (m *Manager) List(ctx context.Context, difficulty Difficulty) ([]Exercise, error) {
	exercises := make([]Exercise, 0)

	tx := m.db.WithContext(ctx)
	if difficulty != "" {
		tx = tx.Where("difficulty = ?", difficulty)
	}
	result := tx.Order("order_index asc").Find(&exercises)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list exercises")
	}

	return exercises, nil
}

// Get will try to return the exercise by id, or nil if there is none
func (m *Manager) Get(ctx context.Context, id string) (*Exercise, error) {
	var e Exercise

	result := m.db.WithContext(ctx).First(&e, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get exercise by id")
	}

	return &e, nil
}
