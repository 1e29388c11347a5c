package services

import (
	"context"

	apperrors "english_lab_go_backend/internal/errors"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/utils/validation"
)

// StudyWorkflow drives one client's session: it raises the matching busy
// flag, calls the learning service and records the result on the controller.
// Failures are classified and kept as the controller's current error.
type StudyWorkflow struct {
	controller *SessionController
	learning   *LearningService
}

func NewStudyWorkflow(controller *SessionController, learning *LearningService) *StudyWorkflow {
	return &StudyWorkflow{controller: controller, learning: learning}
}

func (w *StudyWorkflow) Controller() *SessionController {
	return w.controller
}

func (w *StudyWorkflow) fail(err error) *apperrors.AppError {
	appErr := apperrors.Classify(err)
	w.controller.SetError(appErr)
	return appErr
}

func (w *StudyWorkflow) begin(a Activity) func() {
	w.controller.ClearError()
	w.controller.SetBusy(a, true)
	return func() { w.controller.SetBusy(a, false) }
}

// StartTopic creates a session for topic and fills it with a new article.
func (w *StudyWorkflow) StartTopic(ctx context.Context, topic string, level models.Level) error {
	if _, err := w.controller.CreateSession(topic, level); err != nil {
		return err
	}
	return w.GenerateArticle(ctx)
}

// GenerateArticle (re)writes the current session's article, which also
// resets the conversation.
func (w *StudyWorkflow) GenerateArticle(ctx context.Context) error {
	session := w.controller.Current()
	if session == nil {
		return ErrNoActiveSession
	}
	done := w.begin(ActivityGeneratingArticle)
	defer done()

	res, err := w.learning.GenerateArticle(ctx, session.Topic, session.Level)
	if err != nil {
		return w.fail(err)
	}
	if err := w.controller.SetArticle(ctx, res.Article); err != nil {
		return err
	}

	if title, err := w.learning.GenerateTitle(ctx, session.Topic, res.Article); err == nil {
		if err := w.controller.SetTitle(ctx, title); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage appends the user's message, asks for a reply and appends it.
func (w *StudyWorkflow) SendMessage(ctx context.Context, text string) error {
	if res := validation.ValidateMessage(text); !res.Valid {
		appErr := apperrors.NewValidationError(res.Message)
		w.controller.SetError(appErr)
		return appErr
	}
	session := w.controller.Current()
	if session == nil {
		return ErrNoActiveSession
	}
	done := w.begin(ActivitySendingMessage)
	defer done()

	history := session.ChatMessages
	msg := models.Message{Role: models.RoleUser, Content: text, Timestamp: w.controller.now().UnixMilli()}
	if err := w.controller.AppendMessage(ctx, msg); err != nil {
		return err
	}

	reply, err := w.learning.Chat(ctx, text, session.Article, history, session.Level)
	if err != nil {
		return w.fail(err)
	}
	return w.controller.AppendMessage(ctx, models.Message{
		Role:      models.RoleAssistant,
		Content:   reply.Message,
		Timestamp: reply.Timestamp,
	})
}

// SubmitRecording transcribes audio and stores the transcript.
func (w *StudyWorkflow) SubmitRecording(ctx context.Context, audio []byte, mimeType string) error {
	if w.controller.Current() == nil {
		return ErrNoActiveSession
	}
	if mimeType == "" {
		mimeType = DefaultAudioMIME
	}
	done := w.begin(ActivityTranscribing)
	defer done()

	res, err := w.learning.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return w.fail(err)
	}
	return w.controller.SetTranscript(ctx, res.Transcript)
}

// RequestFeedback coaches the current transcript against the article.
func (w *StudyWorkflow) RequestFeedback(ctx context.Context) (*FeedbackResult, error) {
	session := w.controller.Current()
	if session == nil {
		return nil, ErrNoActiveSession
	}
	transcript := ""
	if session.Transcript != nil {
		transcript = *session.Transcript
	}
	if res := validation.ValidateTranscript(transcript); !res.Valid {
		appErr := apperrors.NewValidationError(res.Message)
		w.controller.SetError(appErr)
		return nil, appErr
	}
	done := w.begin(ActivityGeneratingFeedback)
	defer done()

	res, err := w.learning.Feedback(ctx, transcript, session.Article, session.Level)
	if err != nil {
		return nil, w.fail(err)
	}
	if err := w.controller.SetFeedback(ctx, res.Feedback); err != nil {
		return nil, err
	}
	return res, nil
}
