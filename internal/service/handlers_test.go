package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_admin/internal/app"
	"store_admin/internal/models"
	"store_admin/internal/pkg/auth"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
	"store_admin/internal/pkg/security"
	"store_admin/internal/storage/mocks"
)

const (
	testSessionID = "0d6f1a52-7c1e-4f4e-9f0e-5b8e2f3c9a10"
	testLogin     = "/login"
)

func testRequest(t *testing.T, ts *httptest.Server, method, path string, requestBody []byte) (*http.Response, string) {
	return testRequestWithAuth(t, ts, method, path, requestBody, "")
}

func testRequestWithAuth(t *testing.T, ts *httptest.Server, method, path string, requestBody []byte, token string) (*http.Response, string) {
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

type testConsole struct {
	server *httptest.Server
	mockDB *mocks.MockStorage
	issuer *auth.Issuer
	token  string
}

// newTestConsole starts the console in front of a fake upstream API and
// returns a console token for a live session.
func newTestConsole(t *testing.T, upstream http.HandlerFunc) *testConsole {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockDB := mocks.NewMockStorage(ctrl)

	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	sealer := security.NewSealer("test-secret")
	issuer := auth.NewIssuer("test-secret", time.Hour)
	collector := metrics.New()
	appInstance := app.NewApp(mockDB, logger.Nop(), app.Config{
		UpstreamURL:    upstreamServer.URL,
		RequestTimeout: time.Second,
		Issuer:         issuer,
		Sealer:         sealer,
		Metrics:        collector,
	})
	t.Cleanup(appInstance.Shutdown)

	service := NewService(appInstance, issuer, collector, ":0", testLogin, logger.Nop())
	testServer := httptest.NewServer(service.NewRouter())
	t.Cleanup(testServer.Close)

	sealed, err := sealer.Seal("upstream-token")
	require.NoError(t, err)
	mockDB.EXPECT().GetSession(gomock.Any(), testSessionID).Return(&models.SessionRecord{
		ID:          testSessionID,
		SealedToken: sealed,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil).AnyTimes()

	token, _, err := issuer.GenerateToken(testSessionID)
	require.NoError(t, err)
	return &testConsole{server: testServer, mockDB: mockDB, issuer: issuer, token: token}
}

func (c *testConsole) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	return testRequestWithAuth(t, c.server, method, path, []byte(body), c.token)
}

func brandsUpstream(deletes *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"data":{"data":[{"id":1,"name":"Acme","slug":"acme","status":1}],"current_page":1,"last_page":1,"total":1}}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/admin/brands/1":
			deletes.Add(1)
			_, _ = io.WriteString(w, `{"status":"success"}`)
		case r.Method == http.MethodPost:
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if payload["name"] == "Taken" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, `{"message":"The given data was invalid.","errors":{"name":["The name has already been taken."]}}`)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"status":"success"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestSessionStartHandler(t *testing.T) {
	type expectedData struct {
		expectedContentType string
		expectedStatusCode  int
		expectedBody        string
	}

	testCases := []struct {
		name        string
		requestBody []byte
		setupMock   func(c *testConsole)
		expected    expectedData
	}{
		{
			name:        "Invalid JSON",
			requestBody: []byte("some body"),
			setupMock:   func(*testConsole) {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusBadRequest,
				expectedBody:        "{\"errors\":\"invalid character 's' looking for beginning of value\"}\n",
			},
		},
		{
			name:        "Missing token",
			requestBody: []byte(`{"token": "", "subject": "admin@example.com"}`),
			setupMock:   func(*testConsole) {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusBadRequest,
				expectedBody:        "{\"errors\":\"missing token\"}\n",
			},
		},
		{
			name:        "Storage failure",
			requestBody: []byte(`{"token": "upstream-token"}`),
			setupMock: func(c *testConsole) {
				c.mockDB.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
			},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusInternalServerError,
				expectedBody:        "{\"errors\":\"session cannot be started\"}\n",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestConsole(t, brandsUpstream(nil))
			tc.setupMock(c)

			resp, body := testRequest(t, c.server, http.MethodPost, "/api/session", tc.requestBody)
			assert.Equal(t, tc.expected.expectedStatusCode, resp.StatusCode)
			assert.Equal(t, tc.expected.expectedContentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, tc.expected.expectedBody, body)
		})
	}

	t.Run("Success", func(t *testing.T) {
		c := newTestConsole(t, brandsUpstream(nil))
		c.mockDB.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(nil)

		resp, body := testRequest(t, c.server, http.MethodPost, "/api/session", []byte(`{"token": "upstream-token", "subject": "admin@example.com"}`))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sessionResponse models.SessionResponse
		require.NoError(t, json.Unmarshal([]byte(body), &sessionResponse))
		claims, err := c.issuer.ParseToken(sessionResponse.Token)
		require.NoError(t, err)
		assert.NotEmpty(t, claims.SessionID)
	})
}

func TestProtectedRoutesRequireConsoleToken(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))

	testCases := []struct {
		name  string
		token string
		body  string
	}{
		{name: "Missing header", token: "", body: "{\"errors\":\"missing auth header\",\"redirect\":\"/login\"}\n"},
		{name: "Invalid token", token: "not-a-jwt", body: "{\"errors\":\"invalid token\",\"redirect\":\"/login\"}\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := testRequestWithAuth(t, c.server, http.MethodGet, "/api/resources/brands", nil, tc.token)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.body, body)
		})
	}
}

func TestListHandlers(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))
	c.mockDB.EXPECT().LoadPreferences(gomock.Any(), gomock.Any()).Times(0)

	resp, body := c.do(t, http.MethodPost, "/api/resources/brands/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"Acme"`)
	assert.Contains(t, body, `"isLoading":false`)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/query", `{"viewMode": "list"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"viewMode":"list"`)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/query", `{"viewMode": "table"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Unknown view mode")

	resp, body = c.do(t, http.MethodGet, "/api/resources/widgets", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"unknown resource\"}\n", body)
}

func TestDrawerHandlers(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))

	resp, body := c.do(t, http.MethodPost, "/api/resources/brands/drawer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"mode":"create"`)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/drawer/submit", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"name":["The name field is required."]`)

	resp, _ = c.do(t, http.MethodPatch, "/api/resources/brands/drawer", `{"values": {"name": "Taken"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/drawer/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"The given data was invalid.\",\"fields\":{\"name\":[\"The name has already been taken.\"]}}", body)

	resp, body = c.do(t, http.MethodGet, "/api/resources/brands/drawer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"open":true`, "a rejected submit keeps the drawer open")

	resp, _ = c.do(t, http.MethodPatch, "/api/resources/brands/drawer", `{"values": {"name": "Globex"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/drawer/submit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"open":false`)

	resp, body = c.do(t, http.MethodPatch, "/api/resources/brands/drawer", `{"values": {"name": 5}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "expects a text value")
}

func TestDrawerEditIsAllOrNothing(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))

	resp, _ := c.do(t, http.MethodPost, "/api/resources/brands/drawer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.do(t, http.MethodPatch, "/api/resources/brands/drawer", `{"values": {"name": "Acme", "status": "yes", "logo": "x"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"status":["Expected a bool value."]`)
	assert.Contains(t, body, `"logo":[`)

	resp, body = c.do(t, http.MethodGet, "/api/resources/brands/drawer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "Acme")

	resp, body = c.do(t, http.MethodPatch, "/api/resources/brands/drawer", `{"values": {"name": "Acme", "status": false}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"Acme"`)
	assert.Contains(t, body, `"status":false`)
}

func TestDeleteConfirmationHandlers(t *testing.T) {
	var deletes atomic.Int32
	c := newTestConsole(t, brandsUpstream(&deletes))

	resp, _ := c.do(t, http.MethodPost, "/api/resources/brands/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.do(t, http.MethodPost, "/api/resources/brands/7/delete", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"entity is not on the current page\"}\n", body)

	resp, body = c.do(t, http.MethodPost, "/api/resources/brands/1/delete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"label":"Acme"`)

	resp, body = c.do(t, http.MethodPost, "/api/confirm", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"open":false`)
	assert.Equal(t, int32(1), deletes.Load())

	resp, body = c.do(t, http.MethodPost, "/api/confirm", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Nothing to delete.")
}

func TestSearchHandlers(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))

	resp, body := c.do(t, http.MethodPost, "/api/search", `{"term": "a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"term":"a"`)
	assert.Contains(t, body, `"loading":false`)

	resp, body = c.do(t, http.MethodPost, "/api/search/keys", `{"key": "escape"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"open":false`)

	resp, body = c.do(t, http.MethodPost, "/api/search/keys", `{"key": "tab"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"unknown key\"}\n", body)
}

func TestUpstreamUnauthorizedEndsSession(t *testing.T) {
	c := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.mockDB.EXPECT().RevokeSession(gomock.Any(), testSessionID).Return(nil)

	resp, body := c.do(t, http.MethodPost, "/api/resources/brands/reload", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, strings.HasSuffix(body, "\"redirect\":\"/login\"}\n"))
}

func TestSessionEndHandler(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))
	c.mockDB.EXPECT().RevokeSession(gomock.Any(), testSessionID).Return(nil)

	resp, _ := c.do(t, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestConsole(t, brandsUpstream(nil))

	resp, body := testRequest(t, c.server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "active_workspaces")
}
