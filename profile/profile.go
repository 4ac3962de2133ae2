package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExperienceLevel is the self-reported face yoga experience of a user
type ExperienceLevel string

// Defining the experience levels a user can pick
const (
	LevelBeginner     ExperienceLevel = "iniciante"
	LevelIntermediate ExperienceLevel = "intermediario"
	LevelAdvanced     ExperienceLevel = "avancado"
)

// UserProfile describes the personal details a user keeps on Glowface
type UserProfile struct {
	ID              string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID          string          `json:"userId" gorm:"not null;uniqueIndex"` // Owned by the hosted auth service
	FullName        string          `json:"fullName" gorm:"not null"`
	Age             *int            `json:"age,omitempty"`
	Gender          string          `json:"gender,omitempty"`
	SkinType        string          `json:"skinType,omitempty"`
	MainConcerns    string          `json:"mainConcerns,omitempty"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel" gorm:"not null;default:iniciante"`
	AvatarURL       string          `json:"avatarUrl,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
