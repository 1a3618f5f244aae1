// Package errors defines the sentinel errors shared by the matcher and its
// front ends, and maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyQuery is the usage error for an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoSuccessor is returned in alternating mode when the matched line is
	// the last line of the corpus.
	ErrNoSuccessor = errors.New("matched line has no successor")
	// ErrInconsistentIndex signals a term referenced by a document that has
	// no IDF entry. It should be unreachable.
	ErrInconsistentIndex = errors.New("inconsistent index")
	// ErrSourceUnreadable wraps corpus and stopword read failures.
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrEmptyCorpus      = errors.New("corpus is empty")
	ErrCorpusNotFound   = errors.New("corpus not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It lets callers
// use this package without also importing the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoSuccessor), errors.Is(err, ErrEmptyCorpus), errors.Is(err, ErrCorpusNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
