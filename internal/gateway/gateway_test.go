package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess := session.New("s-1", "admin@example.com", "upstream-token")
	client, err := New(Config{BaseURL: server.URL + "/api/", Credentials: sess})
	require.NoError(t, err)
	return client, sess
}

func TestList(t *testing.T) {
	tests := []struct {
		name      string
		query     models.ListQuery
		wantQuery string
	}{
		{
			name:      "client sorted resource",
			query:     models.ListQuery{Page: 2, Search: "sam"},
			wantQuery: "page=2&search=sam",
		},
		{
			name:      "server sorted resource",
			query:     models.ListQuery{Page: 1, Search: "", Sort: "total", Direction: models.Desc},
			wantQuery: "direction=desc&page=1&search=&sort=total",
		},
		{
			name:      "page defaults to one",
			query:     models.ListQuery{},
			wantQuery: "page=1&search=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/admin/products", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
				assert.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				_, _ = io.WriteString(w, `{"data":{"data":[{"id":1,"name":"Samsung"}],"current_page":2,"last_page":3,"total":21}}`)
			})

			page, err := client.List(context.Background(), models.Products, tt.query)
			require.NoError(t, err)
			assert.Len(t, page.Items, 1)
			assert.Equal(t, 2, page.CurrentPage)
			assert.Equal(t, 3, page.LastPage)
			assert.Equal(t, 21, page.Total)
		})
	}
}

func TestListMalformedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":"nope"}`)
	})

	_, err := client.List(context.Background(), models.Brands, models.ListQuery{Page: 1})
	require.Error(t, err)
	assert.Equal(t, apierr.Network, apierr.KindOf(err))
}

func TestUnauthorizedSignsOutOnce(t *testing.T) {
	var hits int32
	client, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	var reasons []string
	sess.OnSignOut(func(reason string) { reasons = append(reasons, reason) })

	_, err := client.List(context.Background(), models.Products, models.ListQuery{Page: 1})
	require.Error(t, err)
	assert.True(t, apierr.IsAuth(err))

	_, err = client.Mutate(context.Background(), Delete(models.Products, "42"))
	assert.True(t, apierr.IsAuth(err))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "no request may leave after sign-out")
	assert.Equal(t, []string{"upstream 401"}, reasons)
	out, _ := sess.SignedOut()
	assert.True(t, out)
}

func TestMutateSuccessSignal(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apierr.Kind
		wantMsg  string
		wantErr  bool
	}{
		{name: "empty body", status: http.StatusNoContent, body: ""},
		{name: "status success", status: http.StatusOK, body: `{"status":"success","message":"Deleted"}`},
		{name: "status absent", status: http.StatusCreated, body: `{"data":{"id":7}}`},
		{
			name: "logical failure on 200", status: http.StatusOK,
			body:    `{"status":"error","message":"In use"}`,
			wantErr: true, wantKind: apierr.Validation, wantMsg: "In use",
		},
		{
			name: "validation failure", status: http.StatusUnprocessableEntity,
			body:    `{"message":"The name field is required.","errors":{"name":["The name field is required."]}}`,
			wantErr: true, wantKind: apierr.Validation, wantMsg: "The name field is required.",
		},
		{
			name: "server failure", status: http.StatusInternalServerError,
			body:    `{"message":"SQLSTATE leak"}`,
			wantErr: true, wantKind: apierr.Network,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/admin/coupons/42", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.Mutate(context.Background(), Delete(models.Coupons, "42"))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "success", res.Status)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apierr.KindOf(err))
			if tt.wantMsg != "" {
				e, ok := apierr.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantMsg, e.Message)
			}
		})
	}
}

func TestMutateValidationFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"code":["The code has already been taken."]}}`)
	})

	_, err := client.Mutate(context.Background(), Create(models.Coupons, map[string]any{"code": "SAVE10"}))
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "The code has already been taken.", e.Message)
	assert.Equal(t, []string{"The code has already been taken."}, e.Fields["code"])
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
}

func TestMutateJSONBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/admin/brands/5", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]any{"name": "Acme", "status": true}, got)
		_, _ = io.WriteString(w, `{"status":"success"}`)
	})

	_, err := client.Mutate(context.Background(), Update(models.Brands, "5", map[string]any{"name": "Acme", "status": true}))
	require.NoError(t, err)
}

func TestMutateMultipartUpdate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/admin/products/9", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "PUT", r.FormValue("_method"))
		assert.Equal(t, "Phone", r.FormValue("name"))
		assert.Equal(t, "1", r.FormValue("status"))
		assert.Equal(t, "0", r.FormValue("featured"))
		assert.Equal(t, "12.50", r.FormValue("price"))
		assert.JSONEq(t, `[{"sku":"A-1","stock":3}]`, r.FormValue("variants"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "phone.jpg", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte{0xff, 0xd8}, data)

		_, _ = io.WriteString(w, `{"status":"success"}`)
	})

	payload := map[string]any{
		"name":     "Phone",
		"status":   true,
		"featured": false,
		"price":    json.Number("12.50"),
		"variants": []any{map[string]any{"sku": "A-1", "stock": json.Number("3")}},
	}
	file := File{Field: "image", Name: "phone.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}

	_, err := client.Mutate(context.Background(), Update(models.Products, "9", payload, file))
	require.NoError(t, err)
}

func TestMutateEncodeFailureKeepsCause(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := client.Mutate(context.Background(), Create(models.Brands, map[string]any{"name": make(chan int)}))
	require.Error(t, err)
	assert.Equal(t, apierr.ClientInput, apierr.KindOf(err))
	var unsupported *json.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)

	file := File{Field: "logo", Name: "logo.jpg", Data: []byte{0xff}}
	_, err = client.Mutate(context.Background(), Create(models.Brands, map[string]any{"name": func() {}}, file))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field name")
	assert.Zero(t, calls.Load())
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := New(Config{BaseURL: baseURL, Credentials: session.New("s", "a", "t")})
	require.NoError(t, err)

	_, err = client.List(context.Background(), models.Users, models.ListQuery{Page: 1})
	require.Error(t, err)
	assert.Equal(t, apierr.Network, apierr.KindOf(err))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Credentials: session.New("s", "a", "t")})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://upstream"})
	assert.Error(t, err)
}
