// Package models defines the data structures used throughout the console.
// It includes the console's own request and response payloads, the persisted
// session and preference records, and the typed entity variants decoded from
// the upstream admin API.
package models

import "time"

// SessionRequest is the token handoff payload: an upstream bearer token issued
// by the external auth provider, plus an optional stable subject (usually the
// admin's e-mail) used to key view preferences.
type SessionRequest struct {
	Token   string `json:"token"`
	Subject string `json:"subject"`
}

// SessionResponse carries the console token the front end sends on every request.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse represents a generic error response payload.
// Redirect is set on 401 so the front end can send the user to the login route.
type ErrorResponse struct {
	Errors   string              `json:"errors"`
	Fields   map[string][]string `json:"fields,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

// SessionRecord is a console session as stored in the database.
// The upstream token is only ever stored sealed.
type SessionRecord struct {
	ID          string
	Subject     string
	SealedToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Preference holds the persisted view state of one resource screen for one admin.
type Preference struct {
	Subject       string
	Resource      string
	ViewMode      ViewMode
	SortKey       string
	SortDirection SortDirection
}

// DrawerOpenRequest opens the drawer in edit mode when ID is set and in
// create mode otherwise.
type DrawerOpenRequest struct {
	ID string `json:"id"`
}

// DrawerEditRequest changes draft fields by their local names.
type DrawerEditRequest struct {
	Values map[string]any `json:"values"`
}

// SearchRequest is one keystroke in the global search box.
type SearchRequest struct {
	Term string `json:"term"`
}

// SearchKeyRequest is one navigation key pressed in the search results.
type SearchKeyRequest struct {
	Key string `json:"key"`
}
