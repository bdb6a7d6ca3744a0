package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

// Session interface for session database operations.
type Session interface {
	Touch(ctx context.Context, id string) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, session *model.Session) (*model.Session, error)
}

type SessionStore struct {
	db *gorm.DB
}

// Make sure we conform to Session interface
var _ Session = (*SessionStore)(nil)

func NewSessionStore(db *gorm.DB) Session {
	return &SessionStore{db: db}
}

// Touch creates the session on first sight and bumps last_seen_at after that.
func (s *SessionStore) Touch(ctx context.Context, id string) (*model.Session, error) {
	now := time.Now()
	session := model.Session{
		ID:         id,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	result := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
	}).Create(&session)
	if result.Error != nil {
		return nil, fmt.Errorf("upserting session: %w", result.Error)
	}

	return &session, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	result := s.getDB(ctx).First(&session, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying session: %w", result.Error)
	}

	return &session, nil
}

// Update saves workflow state on an already loaded session.
func (s *SessionStore) Update(ctx context.Context, session *model.Session) (*model.Session, error) {
	session.LastSeenAt = time.Now()
	result := s.getDB(ctx).Save(session)
	if result.Error != nil {
		return nil, fmt.Errorf("updating session: %w", result.Error)
	}
	return session, nil
}

func (s *SessionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
