package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks blank or malformed input rejected before any query runs.
	ErrValidation = errors.New("invalid input")
	// ErrConflict marks a uniqueness violation, such as a duplicate email.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an update, delete or lookup that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks any other driver or connectivity failure.
	ErrStorage = errors.New("storage failure")
)

// Invalid builds a validation error for field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// Blank reports a validation error when value is empty after trimming.
func Blank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Invalid(field, "cannot be blank")
	}
	return nil
}

// NotFound builds a not-found error naming what was missing.
func NotFound(what string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
}

// Classify maps a gorm/driver error onto the package taxonomy. Errors that
// already carry one of the kinds are returned untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}

// IsKnown reports whether err already belongs to the taxonomy.
func IsKnown(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStorage)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// sqlite: "UNIQUE constraint failed"; postgres: SQLSTATE 23505.
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "23505")
}
