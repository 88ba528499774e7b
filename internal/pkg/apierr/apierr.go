// Package apierr defines the single error taxonomy shared by the list controllers,
// the mutation gateway, the drawers and the HTTP layer.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how the console must react to it.
type Kind string

const (
	// Auth means the upstream session is gone. The session has already been
	// signed out and no state may be derived from the failed call.
	Auth Kind = "auth"
	// Validation is a recoverable logical failure reported by the server.
	Validation Kind = "validation"
	// Network covers transport failures and 5xx responses.
	Network Kind = "network"
	// ClientInput is rejected locally before any request is made.
	ClientInput Kind = "client_input"
)

const genericMessage = "Something went wrong. Please try again."

// Error is the typed error returned by every console component.
type Error struct {
	Kind    Kind
	Status  int                 // upstream HTTP status, 0 when no response was received
	Message string              // user-visible message
	Fields  map[string][]string // per-field messages, if the server sent any
	Err     error               // underlying cause, for logs
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func AuthErr(status int) *Error {
	return &Error{Kind: Auth, Status: status, Message: "Your session has expired. Please sign in again."}
}

func ValidationErr(status int, msg string, fields map[string][]string) *Error {
	return &Error{Kind: Validation, Status: status, Message: msg, Fields: fields}
}

func NetworkErr(status int, err error) *Error {
	return &Error{Kind: Network, Status: status, Message: genericMessage, Err: err}
}

func ClientInputErr(msg string, fields map[string][]string) *Error {
	return &Error{Kind: ClientInput, Message: msg, Fields: fields}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or Network for errors outside the taxonomy.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Network
}

func IsAuth(err error) bool {
	ae, ok := As(err)
	return ok && ae.Kind == Auth
}

// HTTPStatus maps err onto the status the console answers with.
func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case Auth:
		return http.StatusUnauthorized
	case Validation:
		if ae.Status >= 400 && ae.Status < 500 && ae.Status != http.StatusUnauthorized {
			return ae.Status
		}
		return http.StatusUnprocessableEntity
	case ClientInput:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.Message != "" {
		return ae.Message
	}
	return genericMessage
}
