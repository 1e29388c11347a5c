// Package validation holds the input checks shared by the session controller
// and the HTTP handlers. Validators never fail; invalid input is reported
// through the returned Result.
package validation

import (
	"strings"
	"unicode/utf8"

	"english_lab_go_backend/internal/models"
)

const (
	MinTopicLength      = 2
	MaxTopicLength      = 200
	MaxMessageLength    = 500
	MinTranscriptLength = 10
)

// Result is the outcome of a single validator. Message is user-facing and
// empty when Valid is true.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"error,omitempty"`
}

func ok() Result { return Result{Valid: true} }

func invalid(msg string) Result { return Result{Message: msg} }

func ValidateTopic(topic string) Result {
	if strings.TrimSpace(topic) == "" {
		return invalid("Please enter a topic")
	}
	n := utf8.RuneCountInString(topic)
	if n < MinTopicLength {
		return invalid("Topic must be at least 2 characters")
	}
	if n > MaxTopicLength {
		return invalid("Topic must be 200 characters or fewer")
	}
	return ok()
}

func ValidateMessage(message string) Result {
	if strings.TrimSpace(message) == "" {
		return invalid("Please enter a message")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return invalid("Message must be 500 characters or fewer")
	}
	return ok()
}

// ValidateTranscript measures the transcript after trimming surrounding
// whitespace.
func ValidateTranscript(transcript string) Result {
	if utf8.RuneCountInString(strings.TrimSpace(transcript)) < MinTranscriptLength {
		return invalid("Transcript must be at least 10 characters")
	}
	return ok()
}

func ValidateLevel(level models.Level) Result {
	if !level.Valid() {
		return invalid("Level must be one of A2, B1, B2, C1")
	}
	return ok()
}
