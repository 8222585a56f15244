package sessions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
)

type Repository struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRepository returns a session store whose sessions live for ttl. A
// non-positive ttl means DefaultTTL.
func NewRepository(gdb *gorm.DB, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{
		db:  gdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a session for profileID under a fresh random token.
func (r *Repository) Start(profileID uint) (*db.Session, error) {
	now := r.now()
	session := &db.Session{
		ProfileID: profileID,
		Token:     uuid.NewString(),
		StartedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var profiles int64
		if err := tx.Model(&db.Profile{}).Where("id = ?", profileID).Count(&profiles).Error; err != nil {
			return err
		}
		if profiles == 0 {
			return db.NotFound("profile", profileID)
		}
		return tx.Omit("Profile", "FlaggedQuestion").Create(session).Error
	})
	if err != nil {
		return nil, r.classify("start session", err)
	}
	logger.Debug("session started", "profile_id", profileID, "expires_at", session.ExpiresAt)
	return session, nil
}

// Lookup returns nil when the token is unknown or its session has expired.
func (r *Repository) Lookup(token string) (*db.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var session db.Session
	err := r.db.Where("token = ? AND expires_at > ?", token, r.now()).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.classify("lookup session", err)
	}
	return &session, nil
}

// End deletes the session. Ending an unknown session is not an error.
func (r *Repository) End(token string) error {
	if err := r.db.Where("token = ?", token).Delete(&db.Session{}).Error; err != nil {
		return r.classify("end session", err)
	}
	return nil
}

// FlagQuestion marks questionID on the live session identified by token.
func (r *Repository) FlagQuestion(token string, questionID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var questions int64
		if err := tx.Model(&db.Question{}).Where("id = ?", questionID).Count(&questions).Error; err != nil {
			return err
		}
		if questions == 0 {
			return db.NotFound("question", questionID)
		}
		res := tx.Model(&db.Session{}).
			Where("token = ? AND expires_at > ?", token, r.now()).
			Update("flagged_question_id", questionID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return db.NotFound("session", token)
		}
		return nil
	})
	return r.classify("flag question", err)
}

// PruneExpired deletes every session that expired at or before now.
func (r *Repository) PruneExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&db.Session{})
	if res.Error != nil {
		return 0, r.classify("prune sessions", res.Error)
	}
	return res.RowsAffected, nil
}

// StartCleanup prunes expired sessions every interval until ctx is done.
func (r *Repository) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := r.PruneExpired(r.now())
			if err != nil {
				logger.Error("failed to cleanup expired sessions", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("expired sessions removed", "count", deleted)
			}
		}
	}
}

func (r *Repository) classify(op string, err error) error {
	err = db.Classify(op, err)
	if errors.Is(err, db.ErrStorage) {
		logger.Error("session storage failure", "op", op, "error", err)
	}
	return err
}
