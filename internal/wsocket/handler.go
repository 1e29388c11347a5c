package wsocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	apperrors "english_lab_go_backend/internal/errors"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Inbound command types.
const (
	TypeCreateSession    = "create_session"
	TypeStartTopic       = "start_topic"
	TypeLoadSession      = "load_session"
	TypeGenerateArticle  = "generate_article"
	TypeSendMessage      = "send_message"
	TypeSubmitAudio      = "submit_audio"
	TypeSetTranscript    = "set_transcript"
	TypeGenerateFeedback = "generate_feedback"
	TypeSetRecording     = "set_recording"
	TypeDeviceError      = "device_error"
	TypeClearError       = "clear_error"
	TypeGetState         = "get_state"
)

// Outbound message types.
const (
	TypeState    = "state"
	TypeEvent    = "event"
	TypeError    = "error"
	TypeFeedback = "feedback"
)

// Message is one inbound command.
type Message struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Topic     string       `json:"topic,omitempty"`
	Level     models.Level `json:"level,omitempty"`
	Content   string       `json:"content,omitempty"`
	Audio     []byte       `json:"audio,omitempty"`
	MimeType  string       `json:"mimeType,omitempty"`
	Recording bool         `json:"recording,omitempty"`
	// Device names a microphone failure reported by the client:
	// "permission_denied", "not_found" or "busy".
	Device    string       `json:"device,omitempty"`
}

// Reply is one outbound frame.
type Reply struct {
	Type     string                    `json:"type"`
	State    *services.ControllerState `json:"state,omitempty"`
	Event    *broker.Event             `json:"event,omitempty"`
	Error    *apperrors.AppError       `json:"error,omitempty"`
	Feedback *services.FeedbackResult  `json:"feedback,omitempty"`
}

// Handler serves the live session socket. Every connection owns its own
// session controller backed by the caller's remote sessions.
type Handler struct {
	learning *services.LearningService
	sessions services.SessionServiceDB
	events   *broker.Broker
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(learning *services.LearningService, sessions services.SessionServiceDB, events *broker.Broker, upgrader websocket.Upgrader, log zerolog.Logger) *Handler {
	return &Handler{
		learning: learning,
		sessions: sessions,
		events:   events,
		upgrader: upgrader,
		log:      log,
	}
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(r Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(r)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User) {
	log := h.log.With().Str("userID", user.ID.String()).Logger()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error upgrading connection")
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := broker.UserTopic(user.ID.String())
	updates := h.events.Subscribe(topic)
	defer h.events.Unsubscribe(topic, updates)

	controller := services.NewSessionController(services.ForUser(h.sessions, user.ID), h.events, topic, log)
	workflow := services.NewStudyWorkflow(controller, h.learning)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if err := c.send(Reply{Type: TypeEvent, Event: &ev}); err != nil {
					log.Debug().Err(err).Msg("Error forwarding session event")
					return
				}
			}
		}
	}()

	log.Info().Msg("Session socket connected")
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Session socket closed unexpectedly")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(Reply{Type: TypeError, Error: apperrors.NewValidationError("Malformed message")})
			continue
		}

		if err := h.dispatch(ctx, c, workflow, msg); err != nil {
			log.Debug().Err(err).Str("type", msg.Type).Msg("Command failed")
			c.send(Reply{Type: TypeError, Error: toAppError(err)})
		}

		state := controller.Snapshot()
		if err := c.send(Reply{Type: TypeState, State: &state}); err != nil {
			log.Debug().Err(err).Msg("Error sending state")
			break
		}
	}
	log.Info().Msg("Session socket disconnected")
}

func (h *Handler) dispatch(ctx context.Context, c *conn, w *services.StudyWorkflow, msg Message) error {
	controller := w.Controller()

	switch msg.Type {
	case TypeCreateSession:
		_, err := controller.CreateSession(msg.Topic, msg.Level)
		return err
	case TypeStartTopic:
		return w.StartTopic(ctx, msg.Topic, msg.Level)
	case TypeLoadSession:
		return controller.LoadSession(ctx, msg.SessionID)
	case TypeGenerateArticle:
		return w.GenerateArticle(ctx)
	case TypeSendMessage:
		return w.SendMessage(ctx, msg.Content)
	case TypeSubmitAudio:
		return w.SubmitRecording(ctx, msg.Audio, msg.MimeType)
	case TypeSetTranscript:
		return controller.SetTranscript(ctx, msg.Content)
	case TypeGenerateFeedback:
		res, err := w.RequestFeedback(ctx)
		if err != nil {
			return err
		}
		return c.send(Reply{Type: TypeFeedback, Feedback: res})
	case TypeSetRecording:
		controller.SetBusy(services.ActivityRecording, msg.Recording)
		return nil
	case TypeDeviceError:
		controller.SetBusy(services.ActivityRecording, false)
		appErr := apperrors.ClassifyDevice(deviceError(msg.Device))
		controller.SetError(appErr)
		return appErr
	case TypeClearError:
		controller.ClearError()
		return nil
	case TypeGetState:
		return nil
	default:
		return apperrors.NewValidationError("Unknown message type: " + msg.Type)
	}
}

func deviceError(name string) error {
	switch name {
	case "permission_denied":
		return apperrors.ErrDevicePermissionDenied
	case "not_found":
		return apperrors.ErrDeviceNotFound
	case "busy":
		return apperrors.ErrDeviceBusy
	default:
		return errors.New("microphone failure: " + name)
	}
}

func toAppError(err error) *apperrors.AppError {
	if errors.Is(err, services.ErrNoActiveSession) {
		return apperrors.NewValidationError("Start or load a session first")
	}
	return apperrors.Classify(err)
}
