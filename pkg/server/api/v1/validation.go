package v1

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reveriehq/reverie/pkg/queue"
)

var validate = validator.New()

// ValidationError is a lightweight error used for 400 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return "validation failed"
	}
	if e.Reason == "" {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + e.Reason
}

// ParseJobType validates the {type} path segment of the job endpoints.
// Backup and restore jobs have their own endpoints and are rejected here.
func ParseJobType(raw string) (queue.Type, error) {
	typ := queue.Type(strings.TrimSpace(raw))
	switch typ {
	case queue.TypeTranscription, queue.TypeEmotion, queue.TypeHLS:
		return typ, nil
	case queue.TypeBackup, queue.TypeRestore:
		return "", &ValidationError{Field: "type", Reason: "use /api/v1/backups or /api/v1/restores"}
	default:
		return "", &ValidationError{Field: "type", Reason: "must be one of: transcription,emotion,hls"}
	}
}

// ParseLookupType validates the {type} path segment of the status endpoints,
// where any of the five job types is a valid lookup key.
func ParseLookupType(raw string) (queue.Type, error) {
	typ := queue.Type(strings.TrimSpace(raw))
	switch typ {
	case queue.TypeTranscription, queue.TypeEmotion, queue.TypeHLS,
		queue.TypeBackup, queue.TypeRestore:
		return typ, nil
	default:
		return "", &ValidationError{Field: "type", Reason: "unknown job type"}
	}
}

// ParseID validates a path ID segment (journal or job identifier).
func ParseID(field, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", &ValidationError{Field: field, Reason: "required"}
	}
	if err := validate.Var(id, "max=128"); err != nil {
		return "", &ValidationError{Field: field, Reason: "too long"}
	}
	return id, nil
}

// ValidateStruct runs struct-tag validation on a decoded request body and
// converts the first failure into a ValidationError.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Reason: "failed on '" + fe.Tag() + "' constraint",
		}
	}
	return &ValidationError{Reason: err.Error()}
}
