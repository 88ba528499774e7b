package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Resource names as they appear in upstream paths (/admin/{resource}).
const (
	Products    = "products"
	Categories  = "categories"
	Brands      = "brands"
	Coupons     = "coupons"
	Orders      = "orders"
	Roles       = "roles"
	Permissions = "permissions"
	Users       = "users"
)

// Entity is implemented by every resource variant.
type Entity interface {
	// Resource names the collection the entity belongs to.
	Resource() string
	// Key is the opaque identifier used in /admin/{resource}/{id}.
	Key() string
	// Label is the identifying display text (name, code, order number).
	Label() string
	// Active reports the entity's status flag.
	Active() bool
	// SortValue returns the value of a server-named field for client-side sorting,
	// or nil when the field is unknown or empty.
	SortValue(field string) any
}

// ID is an opaque identifier the server may send as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("models: invalid id %s", b)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Flag is a status flag sent as a bool, 0/1, or a word such as "active".
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "active", "enabled", "yes", "published":
			*f = true
		case "", "0", "false", "inactive", "disabled", "no", "draft":
			*f = false
		default:
			return fmt.Errorf("models: invalid status flag %q", t)
		}
	default:
		return fmt.Errorf("models: invalid status flag %s", b)
	}
	return nil
}

// Amount is a decimal the server may send as a number or a numeric string.
// The textual form is kept to avoid float drift.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if s != "" && !isNumberLiteral(s) {
		return fmt.Errorf("models: invalid amount %q", s)
	}
	*a = Amount(s)
	return nil
}

func isNumberLiteral(s string) bool {
	if s == "" || s[0] == '"' {
		return false
	}
	var n json.Number
	return json.Unmarshal([]byte(s), &n) == nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return []byte(a), nil
}

// Float returns the amount as a number for sorting; empty amounts are 0.
func (a Amount) Float() float64 {
	f, _ := strconv.ParseFloat(string(a), 64)
	return f
}

// NameList is a list of names. The server sends either plain strings or
// objects carrying a "name" field (roles, permissions).
type NameList []string

func (l *NameList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	names := make(NameList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			names = append(names, s)
			continue
		}
		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &named); err != nil || named.Name == "" {
			return fmt.Errorf("models: invalid name entry %s", item)
		}
		names = append(names, named.Name)
	}
	*l = names
	return nil
}

func sortText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sortAmount(a Amount) any {
	if a == "" {
		return nil
	}
	return a.Float()
}

func sortID(id ID) any {
	if id == "" {
		return nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	return string(id)
}
