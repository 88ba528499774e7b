package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
)

// File is a staged binary attachment sent as one multipart part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Mutation describes exactly one write against /admin/{resource}[/{id}].
type Mutation struct {
	Method   string
	Resource string
	ID       string
	Payload  map[string]any
	Files    []File
}

func Create(resource string, payload map[string]any, files ...File) Mutation {
	return Mutation{Method: http.MethodPost, Resource: resource, Payload: payload, Files: files}
}

func Update(resource, id string, payload map[string]any, files ...File) Mutation {
	return Mutation{Method: http.MethodPut, Resource: resource, ID: id, Payload: payload, Files: files}
}

func Delete(resource, id string) Mutation {
	return Mutation{Method: http.MethodDelete, Resource: resource, ID: id}
}

func (m Mutation) path() string {
	if m.ID == "" {
		return collectionPath(m.Resource)
	}
	return collectionPath(m.Resource) + "/" + url.PathEscape(m.ID)
}

func (m Mutation) describe() string {
	if m.ID == "" {
		return fmt.Sprintf("%s %s", m.Method, m.Resource)
	}
	return fmt.Sprintf("%s %s/%s", m.Method, m.Resource, m.ID)
}

// encode returns the wire method, body and content type. Multipart is used
// whenever files are attached; an update then travels as POST with _method=PUT.
func (m Mutation) encode() (string, []byte, string, error) {
	if len(m.Files) == 0 {
		if m.Payload == nil {
			return m.Method, nil, "", nil
		}
		body, err := json.Marshal(m.Payload)
		if err != nil {
			return "", nil, "", err
		}
		return m.Method, body, "application/json", nil
	}

	method := m.Method
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if method == http.MethodPut {
		method = http.MethodPost
		if err := w.WriteField("_method", http.MethodPut); err != nil {
			return "", nil, "", err
		}
	}

	keys := make([]string, 0, len(m.Payload))
	for k := range m.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, err := formValue(m.Payload[k])
		if err != nil {
			return "", nil, "", fmt.Errorf("field %s: %w", k, err)
		}
		if err := w.WriteField(k, value); err != nil {
			return "", nil, "", err
		}
	}

	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return "", nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return "", nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, "", err
	}
	return method, buf.Bytes(), w.FormDataContentType(), nil
}

// formValue flattens one payload value into a multipart string.
// Booleans become 1/0 and collections are JSON-encoded.
func formValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case json.Number:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
