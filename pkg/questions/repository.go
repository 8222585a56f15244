package questions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/focus"
	"github.com/smith3v/mathquiz/pkg/logger"
	"gorm.io/gorm"
)

// Question is a read-only copy of a questions row with its focus-area name.
type Question struct {
	ID        uint      `json:"id"`
	FocusArea string    `json:"focus_area,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
	Reference *string   `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Input is one question to store.
type Input struct {
	FocusArea string
	Question  string
	Answer    string
	Reference string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Add stores one question under the normalized focus area.
func (r *Repository) Add(focusArea, question, answer string, reference *string) (uint, error) {
	in := Input{FocusArea: focusArea, Question: question, Answer: answer}
	if reference != nil {
		in.Reference = *reference
	}
	if err := validate(in); err != nil {
		return 0, err
	}
	var id uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = insert(tx, in)
		return err
	})
	if err != nil {
		return 0, r.classify("add question", err)
	}
	logger.Debug("question added", "question_id", id)
	return id, nil
}

func validate(in Input) error {
	if err := db.Blank("question", in.Question); err != nil {
		return err
	}
	return db.Blank("answer", in.Answer)
}

// insert expects in to have passed validate.
func insert(tx *gorm.DB, in Input) (uint, error) {
	area, err := focus.Resolve(tx, in.FocusArea)
	if err != nil {
		return 0, err
	}
	row := db.Question{
		FocusAreaID: &area.ID,
		Question:    strings.TrimSpace(in.Question),
		Answer:      strings.TrimSpace(in.Answer),
	}
	if ref := strings.TrimSpace(in.Reference); ref != "" {
		row.Reference = &ref
	}
	if err := tx.Omit("FocusArea").Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// Import stores every input in one transaction. A single invalid row
// rejects the whole batch before anything is written.
func (r *Repository) Import(inputs []Input) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	for i, in := range inputs {
		if err := validate(in); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			if _, err := insert(tx, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, r.classify("import questions", err)
	}
	logger.Info("questions imported", "count", len(inputs))
	return len(inputs), nil
}

// List returns up to limit questions in random order without repeats. A
// blank or "Any" focus area samples the whole set.
func (r *Repository) List(focusArea string, limit int) ([]Question, error) {
	if limit < 1 {
		limit = 1
	}
	query := r.db.Table("questions AS q").
		Select("q.id, fa.name AS focus_area, q.question, q.answer, q.reference, q.created_at").
		Joins("LEFT JOIN focus_areas fa ON fa.id = q.focus_area_id")
	if !focus.IsAny(focusArea) {
		query = query.Where("fa.name = ?", focus.Normalize(focusArea))
	}
	return r.scan(query.Order("RANDOM()").Limit(limit), "list questions")
}

// All returns every question ordered by id.
func (r *Repository) All() ([]Question, error) {
	query := r.db.Table("questions AS q").
		Select("q.id, fa.name AS focus_area, q.question, q.answer, q.reference, q.created_at").
		Joins("LEFT JOIN focus_areas fa ON fa.id = q.focus_area_id").
		Order("q.id")
	return r.scan(query, "export questions")
}

// Get returns nil when no question has this id.
func (r *Repository) Get(id uint) (*Question, error) {
	query := r.db.Table("questions AS q").
		Select("q.id, fa.name AS focus_area, q.question, q.answer, q.reference, q.created_at").
		Joins("LEFT JOIN focus_areas fa ON fa.id = q.focus_area_id").
		Where("q.id = ?", id).
		Limit(1)
	qs, err := r.scan(query, "get question")
	if err != nil || len(qs) == 0 {
		return nil, err
	}
	return &qs[0], nil
}

func (r *Repository) scan(query *gorm.DB, op string) ([]Question, error) {
	var rows []struct {
		ID        uint
		FocusArea *string
		Question  string
		Answer    string
		Reference *string
		CreatedAt time.Time
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, r.classify(op, err)
	}
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		q := Question{
			ID:        row.ID,
			Question:  row.Question,
			Answer:    row.Answer,
			Reference: row.Reference,
			CreatedAt: row.CreatedAt,
		}
		if row.FocusArea != nil {
			q.FocusArea = *row.FocusArea
		}
		out = append(out, q)
	}
	return out, nil
}

func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&db.Question{}).Count(&count).Error; err != nil {
		return 0, r.classify("count questions", err)
	}
	return count, nil
}

func (r *Repository) classify(op string, err error) error {
	err = db.Classify(op, err)
	if errors.Is(err, db.ErrStorage) {
		logger.Error("question storage failure", "op", op, "error", err)
	}
	return err
}
