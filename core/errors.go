package core

import "github.com/pkg/errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects an email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork is returned when a request could not complete, or failed in a way nobody could classify.
	ErrNetwork = errors.New("network error")
	// ErrAuthExpired is returned when the backend no longer accepts a previously valid token.
	ErrAuthExpired = errors.New("authentication expired")
)

// RequestError is a classified request failure carrying the human-readable message to show the user.
type RequestError struct {
	Kind    error // one of ErrInvalidCredentials, ErrNetwork, ErrAuthExpired
	Message string
	Err     error
}

func NewRequestError(kind error, msg string, err error) error {
	if msg == "" {
		msg = kind.Error()
	}
	return &RequestError{Kind: kind, Message: msg, Err: err}
}

func (err *RequestError) Error() string {
	if err.Err != nil {
		return err.Message + ": " + err.Err.Error()
	}
	return err.Message
}

func (err *RequestError) Unwrap() error { return err.Err }

func (err *RequestError) Is(target error) bool { return target == err.Kind }

// ErrorMessage returns the message meant for the user, if any was attached to err.
func ErrorMessage(err error) string {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	var msgr interface{ UserMessage() string }
	if errors.As(err, &msgr) {
		return msgr.UserMessage()
	}
	return ""
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	flds := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}
