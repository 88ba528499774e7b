package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ErrMalformedEnvelope is returned when a collection response has no recognizable data.
var ErrMalformedEnvelope = errors.New("models: malformed collection envelope")

// maxUnescapePasses bounds how many layers of encoding are peeled from one value.
const maxUnescapePasses = 4

type pageEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type paginatedData struct {
	Data        []json.RawMessage `json:"data"`
	CurrentPage Count             `json:"current_page"`
	LastPage    Count             `json:"last_page"`
	Total       Count             `json:"total"`
}

// DecodePage peels the {data: {data: [...], current_page, last_page, total}}
// collection envelope. A flat {data: [...]} body is accepted as a single page.
func DecodePage(body []byte) (*RawPage, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding collection envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrMalformedEnvelope
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decoding collection items: %w", err)
		}
		return &RawPage{Items: items, CurrentPage: 1, LastPage: 1, Total: len(items)}, nil
	}

	var paginated paginatedData
	if err := json.Unmarshal(data, &paginated); err != nil {
		return nil, fmt.Errorf("decoding paginated collection: %w", err)
	}
	page := &RawPage{
		Items:       paginated.Data,
		CurrentPage: int(paginated.CurrentPage),
		LastPage:    int(paginated.LastPage),
		Total:       int(paginated.Total),
	}
	if page.Items == nil {
		page.Items = []json.RawMessage{}
	}
	if page.CurrentPage < 1 {
		page.CurrentPage = 1
	}
	if page.LastPage < page.CurrentPage {
		page.LastPage = page.CurrentPage
	}
	return page, nil
}

// DecodeEntity validates one raw item at the API boundary: double-encoded
// values are unescaped as far as the matching field of T allows, then the
// result must fit T.
func DecodeEntity[T any](raw json.RawMessage) (T, error) {
	var out T
	generic, err := decodeGeneric(raw)
	if err != nil {
		return out, err
	}
	clean, err := json.Marshal(unescapeAs(generic, reflect.TypeOf(out)))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(clean, &out); err != nil {
		return out, fmt.Errorf("decoding %T: %w", out, err)
	}
	return out, nil
}

// ToValues flattens an entity into its server-named JSON fields.
func ToValues(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}
	values, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("models: %T is not an object", v)
	}
	return values, nil
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unescape walks a decoded JSON value and replaces every string that is
// itself an encoded JSON string, array or object (or HTML-escaped text) with
// its decoded form. The upstream API double-encodes nested collections sent
// as multipart fields; this absorbs that. Up to maxUnescapePasses layers are
// peeled per string, so clean values pass through unchanged. Unescape does
// not know the destination type; use it only where any shape is acceptable.
func Unescape(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			t[k] = Unescape(x)
		}
		return t
	case []any:
		for i, x := range t {
			t[i] = Unescape(x)
		}
		return t
	case string:
		return unescapeString(t)
	}
	return v
}

func unescapeString(s string) any {
	var cur any = s
	for i := 0; i < maxUnescapePasses; i++ {
		str, ok := cur.(string)
		if !ok {
			break
		}
		next, changed := unescapeOnce(str)
		if !changed {
			break
		}
		cur = next
	}
	if _, ok := cur.(string); ok {
		return cur
	}
	return Unescape(cur)
}

// UnescapeText peels HTML entities and quote layers from s for as long as the
// result is still a string. Text that merely looks like JSON is kept as is.
func UnescapeText(s string) string {
	for i := 0; i < maxUnescapePasses; i++ {
		next, changed := unescapeOnce(s)
		str, ok := next.(string)
		if !changed || !ok {
			break
		}
		s = str
	}
	return s
}

// unescapeAs unescapes v toward the shape of t without touching v. A string
// is replaced by a decoded array or object only where t is a collection, and
// an object field whose unescaped value no longer fits its Go type keeps the
// value the server sent.
func unescapeAs(v any, t reflect.Type) any {
	if t == nil {
		return Unescape(cloneValue(v))
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Interface:
		return Unescape(cloneValue(v))
	case reflect.Struct:
		obj, ok := asCollection(v).(map[string]any)
		if !ok {
			return v
		}
		fields := jsonFields(t)
		out := make(map[string]any, len(obj))
		for k, x := range obj {
			out[k] = x
			ft, ok := fields[k]
			if !ok {
				continue
			}
			if cand := unescapeAs(x, ft); fits(cand, ft) {
				out[k] = cand
			}
		}
		return out
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			break
		}
		items, ok := asCollection(v).([]any)
		if !ok {
			return v
		}
		out := make([]any, len(items))
		for i, x := range items {
			out[i] = unescapeAs(x, t.Elem())
		}
		return out
	case reflect.Map:
		obj, ok := asCollection(v).(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(obj))
		for k, x := range obj {
			out[k] = unescapeAs(x, t.Elem())
		}
		return out
	}

	if s, ok := v.(string); ok {
		return UnescapeText(s)
	}
	return v
}

// asCollection returns the decoded array or object an encoded string holds,
// or v itself.
func asCollection(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch decoded := unescapeString(s).(type) {
	case []any, map[string]any:
		return decoded
	}
	return v
}

func fits(v any, t reflect.Type) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, reflect.New(t).Interface()) == nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	}
	return v
}

var fieldCache sync.Map

// jsonFields maps the JSON names of t's fields to their types, following
// encoding/json's tag and embedding rules closely enough for entity structs.
func jsonFields(t reflect.Type) map[string]reflect.Type {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]reflect.Type)
	}
	fields := make(map[string]reflect.Type)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			inner := f.Type
			if inner.Kind() == reflect.Pointer {
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				for k, ft := range jsonFields(inner) {
					if _, ok := fields[k]; !ok {
						fields[k] = ft
					}
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[name] = f.Type
	}
	fieldCache.Store(t, fields)
	return fields
}

func unescapeOnce(s string) (any, bool) {
	if strings.Contains(s, "&") {
		if u := html.UnescapeString(s); u != s {
			return u, true
		}
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !strings.ContainsRune(`"[{`, rune(trimmed[0])) {
		return s, false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return s, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return s, false
	}
	return decoded, true
}

// Count is an integer that the server may send as a number or a numeric string.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("models: invalid count %q", s)
	}
	*c = Count(int(n))
	return nil
}
