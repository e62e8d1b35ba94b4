// Package pkgerrors defines the closed set of error kinds the ingest
// pipeline and search API propagate across component boundaries.
// Errors are explicit return values with a discriminated kind; nothing
// in this module uses panic/recover for control flow.
package pkgerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds. Kind is not a type name, it's a
// classification carried alongside the wrapped cause.
type Kind string

const (
	KindConfig         Kind = "config_error"
	KindOCR            Kind = "ocr_error"
	KindClassification Kind = "classification_warning"
	KindEmbedding      Kind = "embedding_error"
	KindIndex          Kind = "index_error"
	KindSearch         Kind = "search_error"
	KindCancellation   Kind = "cancellation_error"
	KindFatal          Kind = "fatal_error"
)

// Error wraps an underlying cause with a Kind and optional structured
// context (file path, page number, doc id) for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func ConfigError(message string, cause error) *Error {
	return New(KindConfig, message, cause)
}

func OCRError(page int, reason error) *Error {
	return New(KindOCR, "OCR call failed", reason).WithContext("page", page)
}

func ClassificationWarning(message string) *Error {
	return New(KindClassification, message, nil)
}

func EmbeddingError(message string, cause error) *Error {
	return New(KindEmbedding, message, cause)
}

func IndexError(message string, cause error) *Error {
	return New(KindIndex, message, cause)
}

func SearchError(message string, cause error) *Error {
	return New(KindSearch, message, cause)
}

func CancellationError(message string) *Error {
	return New(KindCancellation, message, nil)
}

func FatalError(message string, cause error) *Error {
	return New(KindFatal, message, cause)
}

// Is reports whether err is (or wraps) a pkgerrors.Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
