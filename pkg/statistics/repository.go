package statistics

import (
	"errors"

	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summary is a copy of one profile's statistics row.
type Summary struct {
	ProfileID      uint    `json:"profile_id"`
	CorrectAnswers int     `json:"correct_answers"`
	Answered       int     `json:"answered"`
	Accuracy       float64 `json:"accuracy"`
	HighScore      int     `json:"high_score"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// EnsureRow inserts a zeroed statistics row for profileID unless one exists.
// It reports ErrNotFound when the profile itself is missing.
func EnsureRow(tx *gorm.DB, profileID uint) error {
	var profiles int64
	if err := tx.Model(&db.Profile{}).Where("id = ?", profileID).Count(&profiles).Error; err != nil {
		return err
	}
	if profiles == 0 {
		return db.NotFound("profile", profileID)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(&db.Statistics{ProfileID: profileID}).Error
}

// RecordAttempt counts one answered question and recomputes accuracy from
// the cumulative counters in the same statement.
func (r *Repository) RecordAttempt(profileID uint, correct bool) error {
	if profileID == 0 {
		return db.Invalid("profile id", "must be set")
	}
	inc := 0
	if correct {
		inc = 1
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := applyAttempt(tx, profileID, inc)
		if res.Error != nil || res.RowsAffected > 0 {
			return res.Error
		}
		if err := EnsureRow(tx, profileID); err != nil {
			return err
		}
		res = applyAttempt(tx, profileID, inc)
		if res.Error == nil && res.RowsAffected == 0 {
			return db.NotFound("statistics for profile", profileID)
		}
		return res.Error
	})
	return r.classify("record attempt", profileID, err)
}

func applyAttempt(tx *gorm.DB, profileID uint, inc int) *gorm.DB {
	return tx.Model(&db.Statistics{}).
		Where("profile_id = ?", profileID).
		Updates(map[string]any{
			"answered":        gorm.Expr("answered + 1"),
			"correct_answers": gorm.Expr("correct_answers + ?", inc),
			"accuracy":        gorm.Expr("(correct_answers + ?) * 1.0 / (answered + 1)", inc),
		})
}

// UpdateHighScore stores candidate if it beats the current high score and
// returns the high score after the call.
func (r *Repository) UpdateHighScore(profileID uint, candidate int) (int, error) {
	if profileID == 0 {
		return 0, db.Invalid("profile id", "must be set")
	}
	var highScore int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		stats, err := raiseHighScore(tx, profileID, candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := EnsureRow(tx, profileID); err != nil {
				return err
			}
			stats, err = raiseHighScore(tx, profileID, candidate)
		}
		if err != nil {
			return err
		}
		highScore = stats.HighScore
		return nil
	})
	if err != nil {
		return 0, r.classify("update high score", profileID, err)
	}
	return highScore, nil
}

func raiseHighScore(tx *gorm.DB, profileID uint, candidate int) (db.Statistics, error) {
	var stats db.Statistics
	if err := tx.Model(&db.Statistics{}).
		Where("profile_id = ? AND highscore < ?", profileID, candidate).
		Update("highscore", candidate).Error; err != nil {
		return stats, err
	}
	err := tx.Where("profile_id = ?", profileID).First(&stats).Error
	return stats, err
}

// GetHighScore returns 0 for profiles without a statistics row.
func (r *Repository) GetHighScore(profileID uint) (int, error) {
	summary, err := r.Get(profileID)
	if err != nil {
		return 0, err
	}
	return summary.HighScore, nil
}

// Get returns a zero Summary for profiles without a statistics row.
func (r *Repository) Get(profileID uint) (Summary, error) {
	var stats db.Statistics
	err := r.db.Where("profile_id = ?", profileID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{ProfileID: profileID}, nil
	}
	if err != nil {
		return Summary{}, r.classify("get statistics", profileID, err)
	}
	return Summary{
		ProfileID:      stats.ProfileID,
		CorrectAnswers: stats.CorrectAnswers,
		Answered:       stats.Answered,
		Accuracy:       stats.Accuracy,
		HighScore:      stats.HighScore,
	}, nil
}

func (r *Repository) classify(op string, profileID uint, err error) error {
	err = db.Classify(op, err)
	if errors.Is(err, db.ErrStorage) {
		logger.Error("statistics storage failure", "op", op, "profile_id", profileID, "error", err)
	}
	return err
}
