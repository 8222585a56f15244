package focus

import (
	"errors"
	"strings"

	"github.com/smith3v/mathquiz/pkg/db"
	"gorm.io/gorm"
)

const (
	Other = "Other"
	Any   = "Any"
)

func Names() []string {
	names := make([]string, len(db.FocusAreaNames))
	copy(names, db.FocusAreaNames)
	return names
}

// Normalize maps label onto the whitelist case-insensitively. Blank and
// unknown labels become Other.
func Normalize(label string) string {
	label = strings.TrimSpace(label)
	for _, name := range db.FocusAreaNames {
		if strings.EqualFold(name, label) {
			return name
		}
	}
	return Other
}

// IsAny reports whether label asks for no focus-area restriction.
func IsAny(label string) bool {
	label = strings.TrimSpace(label)
	return label == "" || strings.EqualFold(label, Any)
}

// Resolve returns the focus-area row for the normalized label, creating it
// if the seed row has gone missing.
func Resolve(tx *gorm.DB, label string) (db.FocusArea, error) {
	name := Normalize(label)
	var area db.FocusArea
	err := tx.Where("name = ?", name).First(&area).Error
	if err == nil {
		return area, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return db.FocusArea{}, err
	}
	area = db.FocusArea{Name: name}
	if err := tx.Create(&area).Error; err != nil {
		return db.FocusArea{}, err
	}
	return area, nil
}
