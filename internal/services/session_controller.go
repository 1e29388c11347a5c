package services

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "english_lab_go_backend/internal/errors"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/utils/broker"
	"english_lab_go_backend/internal/utils/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Activity names one of the controller's busy flags.
type Activity int

const (
	ActivityGeneratingArticle Activity = iota
	ActivitySendingMessage
	ActivityRecording
	ActivityTranscribing
	ActivityGeneratingFeedback
	activityCount
)

func (a Activity) String() string {
	switch a {
	case ActivityGeneratingArticle:
		return "generating_article"
	case ActivitySendingMessage:
		return "sending_message"
	case ActivityRecording:
		return "recording"
	case ActivityTranscribing:
		return "transcribing"
	case ActivityGeneratingFeedback:
		return "generating_feedback"
	default:
		return "unknown"
	}
}

// ControllerState is a read-only snapshot for the interface layer.
type ControllerState struct {
	Session              *models.Session     `json:"session"`
	IsGeneratingArticle  bool                `json:"isGeneratingArticle"`
	IsSendingMessage     bool                `json:"isSendingMessage"`
	IsRecording          bool                `json:"isRecording"`
	IsTranscribing       bool                `json:"isTranscribing"`
	IsGeneratingFeedback bool                `json:"isGeneratingFeedback"`
	Error                *apperrors.AppError `json:"error"`
}

// SessionController owns the current session of one interactive client plus
// its busy flags and last error. Every mutation updates memory first, then
// waits for the store; a store failure is returned and kept as the current
// error while the in-memory update stays.
type SessionController struct {
	mu      sync.Mutex
	store   SessionStore
	events  *broker.Broker
	topic   string
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
	current *models.Session
	busy    [activityCount]bool
	err     *apperrors.AppError
}

// NewSessionController builds a controller over store. events may be nil;
// otherwise session events are published on topic.
func NewSessionController(store SessionStore, events *broker.Broker, topic string, log zerolog.Logger) *SessionController {
	return &SessionController{
		store:  store,
		events: events,
		topic:  topic,
		log:    log,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateSession replaces the current session with a fresh, empty one. The
// new session is persisted once it gets an article.
func (c *SessionController) CreateSession(topic string, level models.Level) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res := validation.ValidateTopic(topic); !res.Valid {
		c.err = apperrors.NewValidationError(res.Message)
		return nil, c.err
	}
	if res := validation.ValidateLevel(level); !res.Valid {
		c.err = apperrors.NewValidationError(res.Message)
		return nil, c.err
	}

	c.current = &models.Session{
		ID:           c.newID(),
		Timestamp:    c.now().UnixMilli(),
		Topic:        topic,
		Level:        level,
		ChatMessages: []models.Message{},
	}
	c.err = nil
	return c.snapshotSession(), nil
}

// LoadSession makes the stored session with id current. On success a
// session_loaded event tells the interface to scroll back to the top.
func (c *SessionController) LoadSession(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.store.GetSession(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		c.err = apperrors.NewAppError(apperrors.KindStorage, "Session not found", false, err)
		return c.err
	}
	if err != nil {
		c.err = apperrors.NewStorageError("Failed to load session", err)
		return c.err
	}

	loaded := session.Clone()
	c.current = &loaded
	c.err = nil
	c.publish(broker.EventSessionLoaded, id)
	return nil
}

// SetArticle replaces the article. The conversation, transcript and feedback
// belong to the old article and are cleared.
func (c *SessionController) SetArticle(ctx context.Context, article string) error {
	return c.mutate(ctx, func(s *models.Session) {
		s.Article = article
		s.ChatMessages = []models.Message{}
		s.Transcript = nil
		s.Feedback = nil
	})
}

func (c *SessionController) AppendMessage(ctx context.Context, msg models.Message) error {
	return c.mutate(ctx, func(s *models.Session) {
		s.ChatMessages = append(s.ChatMessages, msg)
	})
}

func (c *SessionController) SetTranscript(ctx context.Context, transcript string) error {
	return c.mutate(ctx, func(s *models.Session) {
		s.Transcript = &transcript
	})
}

func (c *SessionController) SetFeedback(ctx context.Context, feedback string) error {
	return c.mutate(ctx, func(s *models.Session) {
		s.Feedback = &feedback
	})
}

func (c *SessionController) SetTitle(ctx context.Context, title string) error {
	return c.mutate(ctx, func(s *models.Session) {
		s.Title = &title
	})
}

func (c *SessionController) mutate(ctx context.Context, apply func(*models.Session)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNoActiveSession
	}
	apply(c.current)

	if err := c.store.SaveSession(ctx, c.current.Clone()); err != nil {
		c.log.Error().Err(err).Str("sessionID", c.current.ID).Msg("Failed to persist session")
		c.err = apperrors.NewStorageError("Failed to save session", err)
		return c.err
	}
	c.publish(broker.EventSessionSaved, c.current.ID)
	return nil
}

func (c *SessionController) publish(eventType, sessionID string) {
	if c.events == nil {
		return
	}
	c.events.Publish(c.topic, broker.Event{Type: eventType, SessionID: sessionID})
}

// Current returns a copy of the current session, or nil.
func (c *SessionController) Current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotSession()
}

func (c *SessionController) snapshotSession() *models.Session {
	if c.current == nil {
		return nil
	}
	s := c.current.Clone()
	return &s
}

// SetBusy flips an advisory busy flag; it does not serialize callers.
func (c *SessionController) SetBusy(a Activity, busy bool) {
	if a < 0 || a >= activityCount {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[a] = busy
}

func (c *SessionController) IsBusy(a Activity) bool {
	if a < 0 || a >= activityCount {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[a]
}

func (c *SessionController) SetError(err *apperrors.AppError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *SessionController) ClearError() {
	c.SetError(nil)
}

func (c *SessionController) LastError() *apperrors.AppError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *SessionController) Snapshot() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControllerState{
		Session:              c.snapshotSession(),
		IsGeneratingArticle:  c.busy[ActivityGeneratingArticle],
		IsSendingMessage:     c.busy[ActivitySendingMessage],
		IsRecording:          c.busy[ActivityRecording],
		IsTranscribing:       c.busy[ActivityTranscribing],
		IsGeneratingFeedback: c.busy[ActivityGeneratingFeedback],
		Error:                c.err,
	}
}
