package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/api/googleapi"
)

// Kind tags an AppError for the client.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAPI        Kind = "api"
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindStorage    Kind = "storage"
)

// AppError is the client-facing failure value: a kind, a message the user can
// read and whether trying again may help.
type AppError struct {
	Kind      Kind   `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(kind Kind, message string, retryable bool, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Retryable: retryable, Err: err}
}

func NewValidationError(message string) *AppError {
	return NewAppError(KindValidation, message, false, nil)
}

func NewStorageError(message string, err error) *AppError {
	return NewAppError(KindStorage, message, true, err)
}

// Device failures raised by the recording layer.
var (
	ErrDevicePermissionDenied = stderrors.New("microphone permission denied")
	ErrDeviceNotFound         = stderrors.New("microphone not found")
	ErrDeviceBusy             = stderrors.New("microphone is in use")
)

// Classify maps a failure onto an AppError by inspecting its type. Unknown
// failures become a generic retryable api error.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewAppError(KindAPI, "The request timed out. Please try again.", true, err)
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAppError(KindAPI, "The API key is invalid. Check the server configuration.", false, err)
		case http.StatusTooManyRequests:
			return NewAppError(KindAPI, "Too many requests. Please wait a moment and try again.", true, err)
		default:
			return NewAppError(KindAPI, "The service returned an error. Please try again.", true, err)
		}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return NewAppError(KindAPI, "The request timed out. Please try again.", true, err)
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if stderrors.As(err, &urlErr) || stderrors.As(err, &opErr) {
		return NewAppError(KindNetwork, "A network error occurred. Check your connection.", true, err)
	}

	return NewAppError(KindAPI, "Something went wrong. Please try again.", true, err)
}

// ClassifyDevice maps a microphone failure onto a permission AppError.
func ClassifyDevice(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, ErrDevicePermissionDenied):
		return NewAppError(KindPermission, "Microphone access is required. Allow the microphone in your browser settings.", false, err)
	case stderrors.Is(err, ErrDeviceNotFound):
		return NewAppError(KindPermission, "No microphone was found. Check your device.", false, err)
	case stderrors.Is(err, ErrDeviceBusy):
		return NewAppError(KindPermission, "The microphone is in use. Close other applications and try again.", false, err)
	default:
		return NewAppError(KindPermission, "Could not access the microphone.", true, err)
	}
}
