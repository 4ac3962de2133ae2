package exercise

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty ranks exercises from beginner to advanced
type Difficulty string

// Defining the difficulties of the catalog
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Exercise is an entry of the face yoga catalog
type Exercise struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	Title        string     `json:"title" gorm:"not null"`
	Description  string     `json:"description"`
	Duration     int        `json:"duration"` // seconds
	Difficulty   Difficulty `json:"difficulty" gorm:"not null;index"`
	Category     string     `json:"category"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	Benefits     TextList   `json:"benefits"`
	Instructions TextList   `json:"instructions"`
	IsPremium    bool       `json:"isPremium"`
	OrderIndex   int        `json:"orderIndex" gorm:"index"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (Exercise) TableName() string {
	return "exercises"
}

func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// Summary hides the video and the step-by-step instructions of premium
// exercises from catalog listings
func (e Exercise) Summary() Exercise {
	if e.IsPremium {
		e.VideoURL = ""
		e.Instructions = nil
	}
	return e
}
