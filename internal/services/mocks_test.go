package services

import (
	"context"
	"io"
	"sync"

	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/stretchr/testify/mock"
)

type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLanguageModel) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	args := m.Called(ctx, audio, mimeType)
	return args.String(0), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionStore) SaveSession(ctx context.Context, session models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionStore) ClearSessions(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCloudStorage struct {
	mock.Mock
}

func (m *MockCloudStorage) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	data, _ := io.ReadAll(content)
	args := m.Called(ctx, objectName, data)
	return args.Error(0)
}

func (m *MockCloudStorage) DeleteFile(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

func (m *MockCloudStorage) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// failingKV wraps a MemoryStore and fails the next setFailures writes with
// setErr.
type failingKV struct {
	*kvstore.MemoryStore
	mu          sync.Mutex
	setErr      error
	setFailures int
	setCalls    int
}

func newFailingKV(setErr error, failures int) *failingKV {
	return &failingKV{
		MemoryStore: kvstore.NewMemoryStore(0),
		setErr:      setErr,
		setFailures: failures,
	}
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.setFailures > 0
	if fail {
		f.setFailures--
	}
	f.mu.Unlock()
	if fail {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, value)
}

// recordingUploader stores uploaded sessions and can fail on a given id.
type recordingUploader struct {
	uploaded []string
	failOn   string
	err      error
}

func (r *recordingUploader) SaveSession(ctx context.Context, session models.Session) error {
	if session.ID == r.failOn {
		return r.err
	}
	r.uploaded = append(r.uploaded, session.ID)
	return nil
}

func strPtr(s string) *string {
	return &s
}
