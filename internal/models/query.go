package models

import (
	"encoding/json"
	"strings"
)

// SortDirection is either asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// ParseSortDirection normalizes user input; anything but "desc" sorts ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

func (d SortDirection) Toggle() SortDirection {
	if d == Desc {
		return Asc
	}
	return Desc
}

// ViewMode selects how a resource list is laid out.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

func ParseViewMode(s string) (ViewMode, bool) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewGrid:
		return ViewGrid, true
	case ViewList:
		return ViewList, true
	}
	return "", false
}

// QueryState is the query a list controller owns. SearchTerm follows every
// keystroke; DebouncedSearchTerm is what is actually sent upstream.
type QueryState struct {
	SearchTerm          string        `json:"searchTerm"`
	DebouncedSearchTerm string        `json:"debouncedSearchTerm"`
	Page                int           `json:"page"`
	SortKey             string        `json:"sortKey,omitempty"`
	SortDirection       SortDirection `json:"sortDirection"`
}

// QueryUpdate is a partial change to a list controller's query. Nil fields are left alone.
type QueryUpdate struct {
	SearchTerm    *string `json:"searchTerm"`
	Page          *int    `json:"page"`
	SortKey       *string `json:"sortKey"`
	SortDirection *string `json:"sortDirection"`
	// ToggleSort sorts by the named key, flipping the direction when it is
	// already the active key.
	ToggleSort *string `json:"toggleSort"`
	ViewMode   *string `json:"viewMode"`
}

// ListQuery is the query string of one collection request.
type ListQuery struct {
	Page      int
	Search    string
	Sort      string
	Direction SortDirection
}

// RawPage is one page of a collection with the envelope peeled off and the
// items still undecoded.
type RawPage struct {
	Items       []json.RawMessage
	CurrentPage int
	LastPage    int
	Total       int
}
