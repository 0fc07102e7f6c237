package ai

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// LLMErrorKind partitions AI call failures for retry decisions.
type LLMErrorKind string

const (
	// KindTransient covers provider errors worth retrying with backoff:
	// rate limits, timeouts, 5xx responses, dropped connections.
	KindTransient LLMErrorKind = "transient"
	// KindSchema marks responses that reached us but violated the expected
	// structure. Retried at most once with a corrective re-prompt.
	KindSchema LLMErrorKind = "schema"
	// KindFatal marks errors that no retry can fix (bad request, auth).
	KindFatal LLMErrorKind = "fatal"
)

// LLMError is the typed error surfaced by AI calls.
type LLMError struct {
	Kind LLMErrorKind
	Op   string
	Err  error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// NewLLMError wraps err with the given kind and operation name.
func NewLLMError(kind LLMErrorKind, op string, err error) *LLMError {
	return &LLMError{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var le *LLMError
	return errors.As(err, &le) && le.Kind == KindTransient
}

// IsSchemaViolation reports whether err is a structured-output mismatch.
func IsSchemaViolation(err error) bool {
	var le *LLMError
	return errors.As(err, &le) && le.Kind == KindSchema
}

// ClassifyProviderError maps a raw provider error to an error kind.
// OpenAI-compatible API errors are classified by HTTP status; anything
// that never produced a response (network failure) counts as transient.
func ClassifyProviderError(err error) LLMErrorKind {
	if err == nil {
		return KindFatal
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return KindTransient
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return KindTransient
		case apiErr.StatusCode >= 500:
			return KindTransient
		default:
			return KindFatal
		}
	}

	return KindTransient
}
