package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"english_lab_go_backend/internal/models"
)

const (
	// MaxChatHistory is how many earlier messages are sent with a chat turn.
	MaxChatHistory = 10
	// DefaultChatLevel applies when a chat request names no level.
	DefaultChatLevel = models.LevelB2
	// DefaultAudioMIME is assumed for recordings without a usable type.
	DefaultAudioMIME = "audio/webm"
	wordsPerMinute   = 200
	maxTitleLength   = 80
)

// ChatTurn is one message sent to the language model.
type ChatTurn struct {
	Role    models.Role
	Content string
}

// CompletionRequest describes a single generation call. The last message is
// the prompt; earlier ones are conversation history. Fast selects the
// smaller, cheaper model.
type CompletionRequest struct {
	System      string
	Messages    []ChatTurn
	Temperature float32
	MaxTokens   int32
	Fast        bool
}

type ArticleResult struct {
	Article           string `json:"article"`
	WordCount         int    `json:"wordCount"`
	EstimatedReadTime int    `json:"estimatedReadTime"`
}

type ChatReply struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type FeedbackResult struct {
	Feedback string           `json:"feedback"`
	Sections FeedbackSections `json:"sections"`
}

type TranscriptResult struct {
	Transcript string `json:"transcript"`
	// Duration is always 0: the provider does not report audio length.
	Duration int `json:"duration"`
}

// LearningService builds the prompts for every generation feature and shapes
// the provider's replies.
type LearningService struct {
	model LanguageModel
	now   func() time.Time
}

func NewLearningService(model LanguageModel) *LearningService {
	return &LearningService{model: model, now: time.Now}
}

func (s *LearningService) GenerateArticle(ctx context.Context, topic string, level models.Level) (*ArticleResult, error) {
	article, err := s.model.Complete(ctx, CompletionRequest{
		System:      articleSystemPrompt,
		Messages:    []ChatTurn{{Role: models.RoleUser, Content: articleUserPrompt(topic, level)}},
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, fmt.Errorf("generate article: %w", err)
	}

	words := len(strings.Fields(article))
	return &ArticleResult{
		Article:           article,
		WordCount:         words,
		EstimatedReadTime: (words + wordsPerMinute - 1) / wordsPerMinute,
	}, nil
}

// Chat answers message in the context of article. Only the last
// MaxChatHistory messages of history are forwarded.
func (s *LearningService) Chat(ctx context.Context, message, article string, history []models.Message, level models.Level) (*ChatReply, error) {
	if !level.Valid() {
		level = DefaultChatLevel
	}
	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}

	turns := make([]ChatTurn, 0, len(history)+2)
	turns = append(turns, ChatTurn{Role: models.RoleUser, Content: chatArticleContext(article)})
	for _, m := range history {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, ChatTurn{Role: models.RoleUser, Content: message})

	reply, err := s.model.Complete(ctx, CompletionRequest{
		System:      chatSystemPrompt(level),
		Messages:    turns,
		Temperature: 0.8,
		MaxTokens:   150,
		Fast:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	return &ChatReply{Message: reply, Timestamp: s.now().UnixMilli()}, nil
}

func (s *LearningService) Feedback(ctx context.Context, transcript, article string, level models.Level) (*FeedbackResult, error) {
	feedback, err := s.model.Complete(ctx, CompletionRequest{
		System:      feedbackSystemPrompt(level),
		Messages:    []ChatTurn{{Role: models.RoleUser, Content: feedbackUserPrompt(transcript, article)}},
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}

	return &FeedbackResult{
		Feedback: feedback,
		Sections: ParseFeedbackSections(feedback),
	}, nil
}

func (s *LearningService) Transcribe(ctx context.Context, audio []byte, mimeType string) (*TranscriptResult, error) {
	text, err := s.model.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return &TranscriptResult{Transcript: strings.TrimSpace(text)}, nil
}

// GenerateTitle asks for a short display label for a session.
func (s *LearningService) GenerateTitle(ctx context.Context, topic, article string) (string, error) {
	title, err := s.model.Complete(ctx, CompletionRequest{
		System:      titleSystemPrompt,
		Messages:    []ChatTurn{{Role: models.RoleUser, Content: titleUserPrompt(topic, article)}},
		Temperature: 0.5,
		MaxTokens:   30,
		Fast:        true,
	})
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	title = strings.Trim(strings.TrimSpace(title), `"'.`)
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	if title == "" {
		title = topic
	}
	return title, nil
}
