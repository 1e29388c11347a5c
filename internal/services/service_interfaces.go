package services

import (
	"context"
	"errors"
	"io"

	"english_lab_go_backend/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionOwnership = errors.New("session belongs to another user")
	ErrNoActiveSession  = errors.New("no active session")
)

// SessionStore is the persistence seam behind the session controller. The
// local key-value store and the remote relational store both implement it,
// so call sites don't vary by deployment.
type SessionStore interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session models.Session) error
	DeleteSession(ctx context.Context, id string) error
	ClearSessions(ctx context.Context) error
}

// SessionUploader receives sessions during migration to the remote store.
type SessionUploader interface {
	SaveSession(ctx context.Context, session models.Session) error
}

// LanguageModel is the generation provider: text completion for articles,
// conversation and feedback, and speech-to-text.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type CloudStorageManager interface {
	UploadFile(ctx context.Context, objectName string, content io.Reader) error
	DeleteFile(ctx context.Context, objectName string) error
	ListFiles(ctx context.Context, prefix string) ([]string, error)
}
