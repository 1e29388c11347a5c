package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"english_lab_go_backend/internal/auth"
	"english_lab_go_backend/internal/database"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/broker"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "routes-secret"

// fakeModel answers every completion with reply and records the requests.
type fakeModel struct {
	reply      string
	transcript string
	err        error
	requests   []services.CompletionRequest
	audio      []byte
	mimeType   string
}

func (f *fakeModel) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeModel) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	f.audio = audio
	f.mimeType = mimeType
	return f.transcript, f.err
}

// memStorage is an in-memory object store keyed by object name.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *memStorage) DeleteFile(ctx context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *memStorage) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *memStorage) names() []string {
	names, _ := m.ListFiles(context.Background(), "")
	return names
}

type testEnv struct {
	router  *gin.Engine
	model   *fakeModel
	db      *gorm.DB
	events  *broker.Broker
	storage *memStorage
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	model := &fakeModel{}
	events := broker.NewBroker()
	storage := &memStorage{objects: map[string][]byte{}}
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()))
	SetupRoutes(r,
		services.NewLearningService(model),
		services.NewSessionServiceDB(db),
		services.NewRecordingArchive(storage),
		events,
		auth.NewTokenVerifier(testSecret, ""),
		services.NewUserService(db),
	)
	return &testEnv{router: r, model: model, db: db, events: events, storage: storage}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "email": sub + "@example.com"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestGenerateArticleHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.model.reply = strings.Repeat("word ", 250)

	w := env.do(t, http.MethodPost, "/api/article", gin.H{"topic": "AI ethics", "level": "B2"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	res := decode(t, w)
	assert.True(t, res.Success)
	var data services.ArticleResult
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Equal(t, 250, data.WordCount)
	assert.Equal(t, 2, data.EstimatedReadTime)
	require.Len(t, env.model.requests, 1)
	assert.Contains(t, env.model.requests[0].Messages[0].Content, `"AI ethics"`)
}

func TestGenerateArticleHandler_Validation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"short topic", gin.H{"topic": "a", "level": "B2"}},
		{"blank topic", gin.H{"topic": "   ", "level": "B2"}},
		{"long topic", gin.H{"topic": strings.Repeat("x", 201), "level": "B2"}},
		{"bad level", gin.H{"topic": "Travel", "level": "Z1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/article", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			res := decode(t, w)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
		})
	}
	assert.Empty(t, env.model.requests)
}

func TestGenerateArticleHandler_ProviderErrorIsHidden(t *testing.T) {
	env := setupTestEnv(t)
	env.model.err = errors.New("secret upstream detail")

	w := env.do(t, http.MethodPost, "/api/article", gin.H{"topic": "Travel", "level": "A2"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to generate article"}`, w.Body.String())
}

func TestChatHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.model.reply = "Interesting!"

	history := make([]models.Message, 12)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: "m"}
	}
	w := env.do(t, http.MethodPost, "/api/chat", gin.H{
		"message": "What about jobs?",
		"article": "An article.",
		"history": history,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var reply services.ChatReply
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &reply))
	assert.Equal(t, "Interesting!", reply.Message)
	assert.NotZero(t, reply.Timestamp)

	req := env.model.requests[0]
	assert.Len(t, req.Messages, services.MaxChatHistory+2)
	assert.Contains(t, req.System, "B2")
}

func TestChatHandler_Validation(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/chat", gin.H{"message": strings.Repeat("x", 501), "article": "a"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/chat", gin.H{"message": "hi", "article": ""}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/chat", gin.H{"message": "hi", "article": "a", "level": "Q"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.model.reply = "## Pronunciation\nClear.\n## Stress\nGood.\n## Expression\nNice.\n## Practice\n1. \"One.\"\n2. \"Two.\"\n3. \"Three.\""

	w := env.do(t, http.MethodPost, "/api/feedback", gin.H{
		"transcript": "I think this article is interesting",
		"article":    "An article.",
		"level":      "B1",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var data services.FeedbackResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, []string{"One.", "Two.", "Three."}, data.Sections.Practice)
	assert.Equal(t, "## Stress\nGood.", data.Sections.Stress)

	w = env.do(t, http.MethodPost, "/api/feedback", gin.H{"transcript": "   short   ", "article": "a", "level": "B1"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartAudio(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestSpeechToTextHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.model.transcript = " hello world \n"

	body, contentType := multipartAudio(t, "file", "take.webm", []byte("fake audio"))
	req, _ := http.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transcript":"hello world","duration":0}`, string(decode(t, w).Data))
	assert.Equal(t, []byte("fake audio"), env.model.audio)
	assert.Equal(t, "audio/webm", env.model.mimeType)

	names := env.storage.names()
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "recordings/anonymous/"))
	assert.True(t, strings.HasSuffix(names[0], "-take.webm"))
}

func TestSpeechToTextHandler_MissingFile(t *testing.T) {
	env := setupTestEnv(t)

	body, contentType := multipartAudio(t, "", "", nil)
	req, _ := http.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateTitleHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.model.reply = "Machines and Morals"

	w := env.do(t, http.MethodPost, "/api/title", gin.H{"topic": "AI ethics", "article": "text"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Machines and Morals"}`, string(decode(t, w).Data))
}

func TestSessionsHandlers_RequireAuth(t *testing.T) {
	env := setupTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodDelete, "/api/sessions?id=x"},
		{http.MethodDelete, "/api/sessions/all"},
	} {
		w := env.do(t, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, w.Body.String())
	}
}

func TestSessionsHandlers_Lifecycle(t *testing.T) {
	env := setupTestEnv(t)
	token := tokenFor(t, "user-1")

	session := models.Session{
		ID:        "s1",
		Timestamp: 100,
		Topic:     "Travel",
		Level:     models.LevelB1,
		Article:   "An article.",
		ChatMessages: []models.Message{
			{Role: models.RoleUser, Content: "hi", Timestamp: 1},
			{Role: models.RoleAssistant, Content: "hello", Timestamp: 2},
		},
	}

	w := env.do(t, http.MethodPost, "/api/sessions", session, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"s1"}`, string(decode(t, w).Data))

	w = env.do(t, http.MethodGet, "/api/sessions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Session
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, session, list[0])

	// another user neither sees nor overwrites it
	other := tokenFor(t, "user-2")
	w = env.do(t, http.MethodGet, "/api/sessions", nil, other)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Empty(t, list)
	w = env.do(t, http.MethodPost, "/api/sessions", session, other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/sessions", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/sessions?id=s1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.MessageRecord{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestSessionsHandlers_SaveValidation(t *testing.T) {
	env := setupTestEnv(t)
	token := tokenFor(t, "user-1")

	w := env.do(t, http.MethodPost, "/api/sessions", gin.H{"topic": "Travel", "level": "B1"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/sessions", gin.H{"id": "s1", "topic": "Travel", "level": "X"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionsHandlers_ClearPublishesEvent(t *testing.T) {
	env := setupTestEnv(t)
	token := tokenFor(t, "user-1")

	for _, id := range []string{"a", "b"} {
		w := env.do(t, http.MethodPost, "/api/sessions", models.Session{ID: id, Topic: "Travel", Level: models.LevelA2}, token)
		require.Equal(t, http.StatusOK, w.Code)
	}

	var user models.User
	require.NoError(t, env.db.Where("auth_id = ?", "user-1").First(&user).Error)
	sub := env.events.Subscribe(broker.UserTopic(user.ID.String()))
	env.storage.objects["recordings/"+user.ID.String()+"/1-take.webm"] = []byte("audio")
	env.storage.objects["recordings/anonymous/1-take.webm"] = []byte("audio")

	w := env.do(t, http.MethodDelete, "/api/sessions/all", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, broker.Event{Type: broker.EventSessionsCleared}, <-sub)
	assert.Equal(t, []string{"recordings/anonymous/1-take.webm"}, env.storage.names())

	w = env.do(t, http.MethodGet, "/api/sessions", nil, token)
	var list []models.Session
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Empty(t, list)
}
