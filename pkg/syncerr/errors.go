// Package syncerr defines the error kinds surfaced by a statement sync invocation.
package syncerr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies a failure of a sync invocation.
type Kind string

const (
	KindConfig      Kind = "config"
	KindCertificate Kind = "certificate"
	KindAuth        Kind = "auth"
	KindUpstream    Kind = "upstream"
	KindShape       Kind = "shape"
	KindValidation  Kind = "validation"
	KindStorage     Kind = "storage"
)

// Error is a classified sync failure.
// Body carries upstream response text for auth/upstream failures.
// Raw carries the unrecognized upstream payload for shape failures.
type Error struct {
	Kind    Kind
	Message string
	Body    string
	Raw     json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config reports missing or invalid process configuration.
func Config(message string, err error) *Error {
	return &Error{Kind: KindConfig, Message: message, Err: err}
}

// Certificate reports an undecodable or incomplete client identity bundle.
func Certificate(message string, err error) *Error {
	return &Error{Kind: KindCertificate, Message: message, Err: err}
}

// Auth reports a rejected or malformed token exchange.
func Auth(message, body string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Body: body, Err: err}
}

// Upstream reports a non-success response from the balance/statement API.
func Upstream(message, body string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Body: body, Err: err}
}

// Shape reports a statement payload with no recognizable transaction container.
func Shape(message string, raw json.RawMessage) *Error {
	return &Error{Kind: KindShape, Message: message, Raw: raw}
}

// Validation reports a malformed sync request.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Storage reports a failed ledger read or write.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindShape:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
