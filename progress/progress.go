package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Completion records one finished exercise session of a user
type Completion struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            string    `json:"userId" gorm:"not null;index"`
	ExerciseID        string    `json:"exerciseId" gorm:"not null"`
	CompletedAt       time.Time `json:"completedAt" gorm:"not null;index"`
	DurationCompleted int       `json:"durationCompleted"` // seconds
	Notes             string    `json:"notes,omitempty"`
}

func (Completion) TableName() string {
	return "user_progress"
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
