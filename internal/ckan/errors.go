package ckan

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors matched by (*Error).Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrValidation    = errors.New("validation error")
)

// Error type names used in the "__type" field of CKAN error responses.
const (
	TypeNotFound      = "Not Found Error"
	TypeNotAuthorized = "Authorization Error"
	TypeValidation    = "Validation Error"
)

// Error is a failed action call.
type Error struct {
	Action  string
	Type    string // CKAN "__type"
	Message string
	Status  int // HTTP status of the response

	// Details holds every other key of the error object, e.g. the
	// per-field messages of a validation error.
	Details map[string]json.RawMessage
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && len(e.Details) > 0 {
		b, _ := json.Marshal(e.Details)
		msg = string(b)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Action, e.Type)
	}
	return fmt.Sprintf("%s: %s: %s", e.Action, e.Type, msg)
}

// Is lets callers match on the sentinel errors.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Type == TypeNotFound
	case ErrNotAuthorized:
		return e.Type == TypeNotAuthorized
	case ErrValidation:
		return e.Type == TypeValidation
	}
	return false
}

// Detail decodes one key of the error object into v.
// It reports false when the key is absent or does not decode.
func (e *Error) Detail(key string, v any) bool {
	raw, ok := e.Details[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// IsNotFound reports whether err is a CKAN not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotAuthorized reports whether err is a CKAN authorization error.
func IsNotAuthorized(err error) bool { return errors.Is(err, ErrNotAuthorized) }

// IsValidation reports whether err is a CKAN validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// AsError extracts the *Error from err.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
