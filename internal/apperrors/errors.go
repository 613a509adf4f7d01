package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the engine. Wrap them with the constructors below and
// compare with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrPartialFailure = errors.New("partial failure")
	ErrStore          = errors.New("store error")
	ErrTaskFull       = errors.New("task full")
	ErrConflict       = errors.New("conflict")
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeForbidden      = "FORBIDDEN"
	CodePartialFailure = "PARTIAL_FAILURE"
	CodeStore          = "STORE_ERROR"
	CodeTaskFull       = "TASK_FULL"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
)

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func TaskFull(taskID int64, required int) error {
	return fmt.Errorf("%w: task %d already has %d volunteers", ErrTaskFull, taskID, required)
}

// Store wraps a persistence failure. Errors that already carry a kind are
// returned unchanged so a NotFound coming out of a DB layer stays a NotFound.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// Kind returns the sentinel carried by err, or nil for an unclassified error.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrForbidden, ErrPartialFailure, ErrStore, ErrTaskFull, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrPartialFailure:
		return http.StatusMultiStatus
	case ErrTaskFull, ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Code(err error) string {
	switch Kind(err) {
	case ErrValidation:
		return CodeValidation
	case ErrNotFound:
		return CodeNotFound
	case ErrForbidden:
		return CodeForbidden
	case ErrPartialFailure:
		return CodePartialFailure
	case ErrStore:
		return CodeStore
	case ErrTaskFull:
		return CodeTaskFull
	case ErrConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}
