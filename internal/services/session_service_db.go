package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"english_lab_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxRemoteSessions caps how many sessions a listing returns.
const MaxRemoteSessions = 50

// SessionServiceDB defines the remote session operations. Every call is
// scoped to the owning user.
type SessionServiceDB interface {
	ListSessionsFromDB(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	GetSessionFromDB(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Session, error)
	UpsertSessionToDB(ctx context.Context, userID uuid.UUID, session models.Session) error
	DeleteSessionFromDB(ctx context.Context, userID uuid.UUID, sessionID string) error
	ClearSessionsFromDB(ctx context.Context, userID uuid.UUID) error
}

// DefaultSessionService implements SessionServiceDB with gorm.
type DefaultSessionService struct {
	db *gorm.DB
}

func NewSessionServiceDB(db *gorm.DB) SessionServiceDB {
	return &DefaultSessionService{db: db}
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// ListSessionsFromDB returns the user's newest sessions with their messages.
func (s *DefaultSessionService) ListSessionsFromDB(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var records []models.SessionRecord
	result := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Order("created_at DESC").
		Limit(MaxRemoteSessions).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("list sessions: %w", result.Error)
	}

	sessions := make([]models.Session, len(records))
	for i, r := range records {
		sessions[i] = r.ToSession()
	}
	return sessions, nil
}

func (s *DefaultSessionService) GetSessionFromDB(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Session, error) {
	var record models.SessionRecord
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session := record.ToSession()
	return &session, nil
}

// UpsertSessionToDB writes the session row and replaces its full message set
// in one transaction. A session id owned by another user is refused.
func (s *DefaultSessionService) UpsertSessionToDB(ctx context.Context, userID uuid.UUID, session models.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.NewSessionRecord(userID, session)

		var existing models.SessionRecord
		err := tx.Select("id", "user_id").Where("id = ?", session.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
		case err != nil:
			return fmt.Errorf("look up session: %w", err)
		case existing.UserID != userID:
			return ErrSessionOwnership
		default:
			err := tx.Model(&models.SessionRecord{}).
				Where("id = ? AND user_id = ?", session.ID, userID).
				Updates(map[string]interface{}{
					"timestamp":  record.Timestamp,
					"topic":      record.Topic,
					"level":      record.Level,
					"article":    record.Article,
					"transcript": record.Transcript,
					"feedback":   record.Feedback,
					"title":      record.Title,
					"updated_at": time.Now(),
				}).Error
			if err != nil {
				return fmt.Errorf("update session: %w", err)
			}
		}

		if err := tx.Where("session_id = ?", session.ID).Delete(&models.MessageRecord{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

		messages := models.NewMessageRecords(session.ID, session.ChatMessages)
		if len(messages) > 0 {
			if err := tx.Create(&messages).Error; err != nil {
				return fmt.Errorf("insert messages: %w", err)
			}
		}
		return nil
	})
}

// DeleteSessionFromDB removes the session's messages, then the session row.
// Deleting a session the user does not own is a no-op.
func (s *DefaultSessionService) DeleteSessionFromDB(ctx context.Context, userID uuid.UUID, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteOwnedSessions(tx, "id = ? AND user_id = ?", sessionID, userID)
	})
}

// ClearSessionsFromDB removes every session the user owns.
func (s *DefaultSessionService) ClearSessionsFromDB(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteOwnedSessions(tx, "user_id = ?", userID)
	})
}

func deleteOwnedSessions(tx *gorm.DB, query string, args ...interface{}) error {
	var ids []string
	if err := tx.Model(&models.SessionRecord{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("enumerate sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("session_id IN ?", ids).Delete(&models.MessageRecord{}).Error; err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.SessionRecord{}).Error; err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// UserSessionStore is a SessionStore view of the remote store for one user.
type UserSessionStore struct {
	db     SessionServiceDB
	userID uuid.UUID
}

func ForUser(db SessionServiceDB, userID uuid.UUID) *UserSessionStore {
	return &UserSessionStore{db: db, userID: userID}
}

func (u *UserSessionStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	return u.db.ListSessionsFromDB(ctx, u.userID)
}

func (u *UserSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return u.db.GetSessionFromDB(ctx, u.userID, id)
}

func (u *UserSessionStore) SaveSession(ctx context.Context, session models.Session) error {
	return u.db.UpsertSessionToDB(ctx, u.userID, session)
}

func (u *UserSessionStore) DeleteSession(ctx context.Context, id string) error {
	return u.db.DeleteSessionFromDB(ctx, u.userID, id)
}

func (u *UserSessionStore) ClearSessions(ctx context.Context) error {
	return u.db.ClearSessionsFromDB(ctx, u.userID)
}
