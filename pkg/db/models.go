// pkg/db/models.go
package db

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type Profile struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:255;not null"`
	PasswordSalt string    `gorm:"size:255;not null"`
	Role         string    `gorm:"size:20;not null;default:student"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Profile) TableName() string {
	return "profiles"
}

type FocusArea struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:50;not null;uniqueIndex"`
}

func (FocusArea) TableName() string {
	return "focus_areas"
}

type ProfileFocusArea struct {
	ProfileID   uint      `gorm:"primaryKey;autoIncrement:false"`
	FocusAreaID uint      `gorm:"primaryKey;autoIncrement:false"`
	Profile     Profile   `gorm:"constraint:OnDelete:CASCADE"`
	FocusArea   FocusArea `gorm:"constraint:OnDelete:CASCADE"`
}

func (ProfileFocusArea) TableName() string {
	return "profile_focus_areas"
}

type Question struct {
	ID          uint       `gorm:"primaryKey"`
	FocusAreaID *uint      `gorm:"index"`
	FocusArea   *FocusArea `gorm:"constraint:OnDelete:SET NULL"`
	Question    string     `gorm:"type:text;not null"`
	Answer      string     `gorm:"type:text;not null"`
	Reference   *string    `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"not null"`
}

func (Question) TableName() string {
	return "questions"
}

type Session struct {
	ID                uint      `gorm:"primaryKey"`
	ProfileID         uint      `gorm:"not null;index"`
	Profile           Profile   `gorm:"constraint:OnDelete:CASCADE"`
	Token             string    `gorm:"size:64;not null;uniqueIndex"`
	FlaggedQuestionID *uint
	FlaggedQuestion   *Question `gorm:"constraint:OnDelete:SET NULL"`
	StartedAt         time.Time `gorm:"not null"`
	ExpiresAt         time.Time `gorm:"not null;index"`
}

func (Session) TableName() string {
	return "sessions"
}

type Statistics struct {
	ID             uint    `gorm:"primaryKey"`
	ProfileID      uint    `gorm:"not null;uniqueIndex"`
	Profile        Profile `gorm:"constraint:OnDelete:CASCADE"`
	CorrectAnswers int     `gorm:"not null;default:0"`
	Answered       int     `gorm:"not null;default:0"`
	HighScore      int     `gorm:"column:highscore;not null;default:0"`
	Accuracy       float64 `gorm:"not null;default:0"`
}

func (Statistics) TableName() string {
	return "statistics"
}

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&Profile{},
		&FocusArea{},
		&ProfileFocusArea{},
		&Question{},
		&Session{},
		&Statistics{},
	}
}
