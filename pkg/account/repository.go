package account

import (
	"errors"
	"strings"
	"time"

	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/focus"
	"github.com/smith3v/mathquiz/pkg/logger"
	"github.com/smith3v/mathquiz/pkg/password"
	"github.com/smith3v/mathquiz/pkg/statistics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewAccount is the sign-up input. FocusArea and Role may be blank; they
// default to Other and student.
type NewAccount struct {
	Name      string
	Email     string
	Password  string
	FocusArea string
	Role      string
}

// Account is a read-only copy of a profile. It never carries credentials.
type Account struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	FocusArea string    `json:"focus_area"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", db.RoleStudent:
		return db.RoleStudent, nil
	case db.RoleTeacher:
		return db.RoleTeacher, nil
	default:
		return "", db.Invalid("role", "must be student or teacher")
	}
}

// Create signs up a profile, links its focus area and creates its zeroed
// statistics row in one transaction.
func (r *Repository) Create(in NewAccount) (uint, error) {
	for _, check := range []error{
		db.Blank("name", in.Name),
		db.Blank("email", in.Email),
		db.Blank("password", in.Password),
	} {
		if check != nil {
			return 0, check
		}
	}
	role, err := normalizeRole(in.Role)
	if err != nil {
		return 0, err
	}

	salt, hash, err := password.Hash(in.Password)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		return 0, err
	}

	profile := db.Profile{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         role,
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		area, err := focus.Resolve(tx, in.FocusArea)
		if err != nil {
			return err
		}
		if err := linkFocusArea(tx, profile.ID, area.ID); err != nil {
			return err
		}
		return statistics.EnsureRow(tx, profile.ID)
	})
	if err != nil {
		return 0, r.classify("create account", "email", profile.Email, err)
	}
	logger.Info("account created", "profile_id", profile.ID, "role", profile.Role)
	return profile.ID, nil
}

func linkFocusArea(tx *gorm.DB, profileID, focusAreaID uint) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&db.ProfileFocusArea{ProfileID: profileID, FocusAreaID: focusAreaID}).Error
}

// Authenticate reports whether the credentials match. An unknown email is
// a plain false.
func (r *Repository) Authenticate(email, pw string) (bool, error) {
	if err := db.Blank("email", email); err != nil {
		return false, err
	}
	if err := db.Blank("password", pw); err != nil {
		return false, err
	}
	var profile db.Profile
	err := r.db.Select("password_hash", "password_salt").
		Where("email = ?", normalizeEmail(email)).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, r.classify("authenticate", "email", normalizeEmail(email), err)
	}
	return password.Verify(pw, profile.PasswordSalt, profile.PasswordHash), nil
}

// Get returns nil when no profile has this email.
func (r *Repository) Get(email string) (*Account, error) {
	if err := db.Blank("email", email); err != nil {
		return nil, err
	}
	return r.find("p.email = ?", normalizeEmail(email))
}

// GetByID returns nil when the id is unknown.
func (r *Repository) GetByID(id uint) (*Account, error) {
	return r.find("p.id = ?", id)
}

func (r *Repository) find(cond string, arg any) (*Account, error) {
	var rows []struct {
		ID        uint
		Name      string
		Email     string
		Role      string
		FocusArea *string
		CreatedAt time.Time
	}
	err := r.db.Raw(`
SELECT p.id, p.name, p.email, p.role, p.created_at,
       (SELECT fa.name
          FROM profile_focus_areas pfa
          JOIN focus_areas fa ON fa.id = pfa.focus_area_id
         WHERE pfa.profile_id = p.id
         ORDER BY fa.name
         LIMIT 1) AS focus_area
  FROM profiles p
 WHERE `+cond+`
 LIMIT 1`, arg).Scan(&rows).Error
	if err != nil {
		return nil, r.classify("get account", "lookup", arg, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	acc := &Account{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Role:      row.Role,
		CreatedAt: row.CreatedAt,
	}
	if row.FocusArea != nil {
		acc.FocusArea = *row.FocusArea
	}
	return acc, nil
}

func (r *Repository) UpdateName(id uint, name string) error {
	if err := db.Blank("name", name); err != nil {
		return err
	}
	return r.updateFields("update name", id, map[string]any{"name": strings.TrimSpace(name)})
}

func (r *Repository) UpdateEmail(id uint, email string) error {
	if err := db.Blank("email", email); err != nil {
		return err
	}
	return r.updateFields("update email", id, map[string]any{"email": normalizeEmail(email)})
}

// UpdatePassword re-hashes with a fresh salt.
func (r *Repository) UpdatePassword(id uint, pw string) error {
	if err := db.Blank("password", pw); err != nil {
		return err
	}
	salt, hash, err := password.Hash(pw)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		return err
	}
	return r.updateFields("update password", id, map[string]any{
		"password_hash": hash,
		"password_salt": salt,
	})
}

func (r *Repository) updateFields(op string, id uint, fields map[string]any) error {
	res := r.db.Model(&db.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return r.classify(op, "profile_id", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return db.NotFound("profile", id)
	}
	return nil
}

// AddFocusArea links one more focus area to the profile; linking an area
// twice is a no-op.
func (r *Repository) AddFocusArea(id uint, label string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var profiles int64
		if err := tx.Model(&db.Profile{}).Where("id = ?", id).Count(&profiles).Error; err != nil {
			return err
		}
		if profiles == 0 {
			return db.NotFound("profile", id)
		}
		area, err := focus.Resolve(tx, label)
		if err != nil {
			return err
		}
		return linkFocusArea(tx, id, area.ID)
	})
	return r.classify("add focus area", "profile_id", id, err)
}

// FocusAreas lists the profile's focus areas alphabetically.
func (r *Repository) FocusAreas(id uint) ([]string, error) {
	var names []string
	err := r.db.Model(&db.FocusArea{}).
		Joins("JOIN profile_focus_areas pfa ON pfa.focus_area_id = focus_areas.id").
		Where("pfa.profile_id = ?", id).
		Order("focus_areas.name").
		Pluck("focus_areas.name", &names).Error
	if err != nil {
		return nil, r.classify("list focus areas", "profile_id", id, err)
	}
	return names, nil
}

// Delete removes the profile; focus links, sessions and statistics go with
// it through ON DELETE CASCADE.
func (r *Repository) Delete(id uint) error {
	res := r.db.Delete(&db.Profile{}, id)
	if res.Error != nil {
		return r.classify("delete account", "profile_id", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return db.NotFound("profile", id)
	}
	logger.Info("account deleted", "profile_id", id)
	return nil
}

func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&db.Profile{}).Count(&count).Error; err != nil {
		return 0, r.classify("count accounts", "table", "profiles", err)
	}
	return count, nil
}

func (r *Repository) classify(op, key string, value any, err error) error {
	err = db.Classify(op, err)
	if errors.Is(err, db.ErrStorage) {
		logger.Error("account storage failure", "op", op, key, value, "error", err)
	}
	return err
}
