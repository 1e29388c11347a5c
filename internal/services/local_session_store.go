package services

import (
	"context"
	"encoding/json"
	"errors"

	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/rs/zerolog"
)

const (
	LocalSessionsKey = "personal-english-lab-sessions"
	MaxLocalSessions = 5
)

// LocalSessionStore keeps the most recently written sessions in a client's
// key-value store. Writes are best effort: failures are logged, never returned.
type LocalSessionStore struct {
	kv  kvstore.Store
	log zerolog.Logger
}

func NewLocalSessionStore(kv kvstore.Store, log zerolog.Logger) *LocalSessionStore {
	return &LocalSessionStore{kv: kv, log: log}
}

// LoadAll returns the stored sessions, most recently written first. A missing
// or corrupt value yields an empty list.
func (s *LocalSessionStore) LoadAll(ctx context.Context) []models.Session {
	raw, ok, err := s.kv.Get(ctx, LocalSessionsKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load sessions")
		return []models.Session{}
	}
	if !ok {
		return []models.Session{}
	}

	var history models.SessionHistory
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		s.log.Error().Err(err).Msg("Failed to decode stored sessions")
		return []models.Session{}
	}
	if history.Sessions == nil {
		return []models.Session{}
	}
	return history.Sessions
}

// Save upserts session by id and moves it to the front, keeping at most
// MaxLocalSessions entries. When the store is full the oldest entry is
// evicted and the write is retried once.
func (s *LocalSessionStore) Save(ctx context.Context, session models.Session) {
	sessions := []models.Session{session}
	for _, existing := range s.LoadAll(ctx) {
		if existing.ID != session.ID {
			sessions = append(sessions, existing)
		}
	}
	if len(sessions) > MaxLocalSessions {
		sessions = sessions[:MaxLocalSessions]
	}

	err := s.write(ctx, sessions)
	if err == nil {
		return
	}
	if !errors.Is(err, kvstore.ErrQuotaExceeded) || len(sessions) < 2 {
		s.log.Error().Err(err).Str("sessionID", session.ID).Msg("Failed to save session")
		return
	}

	sessions = sessions[:len(sessions)-1]
	if err := s.write(ctx, sessions); err != nil {
		s.log.Error().Err(err).Str("sessionID", session.ID).Msg("Failed to retry save")
		return
	}
	s.log.Warn().Str("sessionID", session.ID).Msg("Storage full, evicted oldest session")
}

func (s *LocalSessionStore) Get(ctx context.Context, id string) (*models.Session, bool) {
	for _, sess := range s.LoadAll(ctx) {
		if sess.ID == id {
			found := sess
			return &found, true
		}
	}
	return nil, false
}

func (s *LocalSessionStore) Delete(ctx context.Context, id string) {
	all := s.LoadAll(ctx)
	filtered := make([]models.Session, 0, len(all))
	for _, sess := range all {
		if sess.ID != id {
			filtered = append(filtered, sess)
		}
	}
	if err := s.write(ctx, filtered); err != nil {
		s.log.Error().Err(err).Str("sessionID", id).Msg("Failed to delete session")
	}
}

func (s *LocalSessionStore) ClearAll(ctx context.Context) {
	if err := s.kv.Remove(ctx, LocalSessionsKey); err != nil {
		s.log.Error().Err(err).Msg("Failed to clear sessions")
	}
}

func (s *LocalSessionStore) write(ctx context.Context, sessions []models.Session) error {
	data, err := json.Marshal(models.SessionHistory{Sessions: sessions})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, LocalSessionsKey, string(data))
}

// SessionStore adapter. Local persistence never reports failure to callers.

func (s *LocalSessionStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.LoadAll(ctx), nil
}

func (s *LocalSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, ok := s.Get(ctx, id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *LocalSessionStore) SaveSession(ctx context.Context, session models.Session) error {
	s.Save(ctx, session)
	return nil
}

func (s *LocalSessionStore) DeleteSession(ctx context.Context, id string) error {
	s.Delete(ctx, id)
	return nil
}

func (s *LocalSessionStore) ClearSessions(ctx context.Context) error {
	s.ClearAll(ctx)
	return nil
}
