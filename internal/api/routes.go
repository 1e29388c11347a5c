package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"english_lab_go_backend/internal/auth"
	apperrors "english_lab_go_backend/internal/errors"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/broker"
	"english_lab_go_backend/internal/utils/validation"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MaxAudioBytes caps speech-to-text uploads.
const MaxAudioBytes = 25 << 20

func SetupRoutes(
	r *gin.Engine,
	learning *services.LearningService,
	sessions services.SessionServiceDB,
	archive *services.RecordingArchive,
	events *broker.Broker,
	verifier *auth.TokenVerifier,
	users auth.UserProvisioner,
) {
	requireUser := auth.AuthMiddleware(verifier, users)

	api := r.Group("/api")
	{
		api.POST("/article", generateArticleHandler(learning))
		api.POST("/chat", chatHandler(learning))
		api.POST("/feedback", feedbackHandler(learning))
		api.POST("/speech-to-text", auth.OptionalAuthMiddleware(verifier, users), speechToTextHandler(learning, archive))
		api.POST("/title", generateTitleHandler(learning))

		api.GET("/sessions", requireUser, listSessionsHandler(sessions))
		api.POST("/sessions", requireUser, saveSessionHandler(sessions, events))
		api.DELETE("/sessions", requireUser, deleteSessionHandler(sessions, events))
		api.DELETE("/sessions/all", requireUser, clearSessionsHandler(sessions, archive, events))
	}
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error())
	}
	return user, ok
}

// resolveLevel treats an empty level as B2; any other unknown level is
// rejected.
func resolveLevel(c *gin.Context, level models.Level) (models.Level, bool) {
	if level == "" {
		return services.DefaultChatLevel, true
	}
	if res := validation.ValidateLevel(level); !res.Valid {
		apperrors.HandleError(c, apperrors.New400Error(res.Message))
		return "", false
	}
	return level, true
}

func generateArticleHandler(learning *services.LearningService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Topic string       `json:"topic"`
			Level models.Level `json:"level"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}
		if res := validation.ValidateTopic(request.Topic); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}
		if res := validation.ValidateLevel(request.Level); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}

		result, err := learning.GenerateArticle(c.Request.Context(), request.Topic, request.Level)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to generate article", err))
			return
		}
		respond(c, result)
	}
}

func chatHandler(learning *services.LearningService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Message string           `json:"message"`
			Article string           `json:"article"`
			History []models.Message `json:"history"`
			Level   models.Level     `json:"level"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}
		if res := validation.ValidateMessage(request.Message); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}
		if strings.TrimSpace(request.Article) == "" {
			apperrors.HandleError(c, apperrors.New400Error("Article is required"))
			return
		}
		level, ok := resolveLevel(c, request.Level)
		if !ok {
			return
		}

		reply, err := learning.Chat(c.Request.Context(), request.Message, request.Article, request.History, level)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to generate response", err))
			return
		}
		respond(c, reply)
	}
}

func feedbackHandler(learning *services.LearningService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Transcript string       `json:"transcript"`
			Article    string       `json:"article"`
			Level      models.Level `json:"level"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}
		if res := validation.ValidateTranscript(request.Transcript); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}
		level, ok := resolveLevel(c, request.Level)
		if !ok {
			return
		}

		result, err := learning.Feedback(c.Request.Context(), request.Transcript, request.Article, level)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to generate feedback", err))
			return
		}
		respond(c, result)
	}
}

func speechToTextHandler(learning *services.LearningService, archive *services.RecordingArchive) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAudioBytes+(1<<20))

		fileHeader, err := c.FormFile("file")
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Audio file is required"))
			return
		}
		if fileHeader.Size > MaxAudioBytes {
			apperrors.HandleError(c, apperrors.New400Error("Audio file must be 25MB or smaller"))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to read audio file", err))
			return
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(file, MaxAudioBytes+1)); err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to read audio file", err))
			return
		}
		if buf.Len() > MaxAudioBytes {
			apperrors.HandleError(c, apperrors.New400Error("Audio file must be 25MB or smaller"))
			return
		}

		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = services.DefaultAudioMIME
		}

		result, err := learning.Transcribe(c.Request.Context(), buf.Bytes(), mimeType)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to transcribe audio", err))
			return
		}

		owner := ""
		if user, ok := auth.CurrentUser(c); ok {
			owner = user.ID.String()
		}
		if _, err := archive.Store(c.Request.Context(), owner, fileHeader.Filename, buf.Bytes()); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("Failed to archive recording")
		}

		respond(c, result)
	}
}

func generateTitleHandler(learning *services.LearningService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Topic   string `json:"topic"`
			Article string `json:"article"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}
		if res := validation.ValidateTopic(request.Topic); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}

		title, err := learning.GenerateTitle(c.Request.Context(), request.Topic, request.Article)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to generate title", err))
			return
		}
		respond(c, gin.H{"title": title})
	}
}

func listSessionsHandler(sessions services.SessionServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		list, err := sessions.ListSessionsFromDB(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to load sessions", err))
			return
		}
		respond(c, list)
	}
}

func saveSessionHandler(sessions services.SessionServiceDB, events *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var session models.Session
		if err := c.ShouldBindJSON(&session); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}
		if strings.TrimSpace(session.ID) == "" {
			apperrors.HandleError(c, apperrors.New400Error("Session id is required"))
			return
		}
		if res := validation.ValidateLevel(session.Level); !res.Valid {
			apperrors.HandleError(c, apperrors.New400Error(res.Message))
			return
		}

		err := sessions.UpsertSessionToDB(c.Request.Context(), user.ID, session)
		if errors.Is(err, services.ErrSessionOwnership) {
			apperrors.HandleError(c, apperrors.New403Error())
			return
		}
		if err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to save session", err))
			return
		}

		events.Publish(broker.UserTopic(user.ID.String()), broker.Event{Type: broker.EventSessionSaved, SessionID: session.ID})
		respond(c, gin.H{"id": session.ID})
	}
}

func deleteSessionHandler(sessions services.SessionServiceDB, events *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		id := c.Query("id")
		if id == "" {
			apperrors.HandleError(c, apperrors.New400Error("Session id is required"))
			return
		}

		if err := sessions.DeleteSessionFromDB(c.Request.Context(), user.ID, id); err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to delete session", err))
			return
		}

		events.Publish(broker.UserTopic(user.ID.String()), broker.Event{Type: broker.EventSessionDeleted, SessionID: id})
		respond(c, gin.H{"id": id})
	}
}

func clearSessionsHandler(sessions services.SessionServiceDB, archive *services.RecordingArchive, events *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		if err := sessions.ClearSessionsFromDB(c.Request.Context(), user.ID); err != nil {
			apperrors.HandleError(c, apperrors.New500ErrorWithMessage("Failed to clear sessions", err))
			return
		}

		if n, err := archive.Purge(c.Request.Context(), user.ID.String()); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Int("purged", n).Msg("Failed to purge recordings")
		}

		events.Publish(broker.UserTopic(user.ID.String()), broker.Event{Type: broker.EventSessionsCleared})
		respond(c, nil)
	}
}
