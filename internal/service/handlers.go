// Package service contains HTTP handler implementations for the admin console API.
// It parses requests, resolves the caller's session workspace, calls the UI state
// containers it holds, and maps the shared error taxonomy onto HTTP responses.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"store_admin/internal/app"
	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/auth"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/resource"
	"store_admin/internal/search"
)

const (
	requestTimeout = 10 * time.Second
	maxUploadBytes = 32 << 20
)

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app        *app.App
	loginRoute string
	log        *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, loginRoute string, l *logger.Logger) *handlers {
	return &handlers{app: app, loginRoute: loginRoute, log: l.Component("service")}
}

type searchKeyResponse struct {
	search.State
	Path string `json:"path,omitempty"`
}

// sessionStartHandler accepts the token handoff from the external auth provider
// and answers with a console token.
func (handlers *handlers) sessionStartHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var sessionRequest models.SessionRequest
	if err := readJSON(req, &sessionRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	sessionResponse, err := handlers.app.ProcessSessionStart(ctx, sessionRequest)
	if err != nil {
		if errors.Is(err, app.ErrMissingToken) {
			writeErrorResponse(res, "missing token", http.StatusBadRequest)
			return
		}
		handlers.log.Error("starting a session failed", zap.Error(err))
		writeErrorResponse(res, "session cannot be started", http.StatusInternalServerError)
		return
	}

	writeJSON(res, http.StatusOK, sessionResponse)
}

// sessionEndHandler signs the caller out.
func (handlers *handlers) sessionEndHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	sessionID, ok := auth.SessionID(req.Context())
	if !ok {
		auth.WriteUnauthorized(res, "unauthorized", handlers.loginRoute)
		return
	}
	if err := handlers.app.ProcessSessionEnd(ctx, sessionID); err != nil {
		handlers.log.Error("ending a session failed", zap.String("session", sessionID), zap.Error(err))
		writeErrorResponse(res, "session cannot be ended", http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

// listHandler returns the list controller snapshot of a resource.
func (handlers *handlers) listHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	c, err := ws.List(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	handlers.writeView(res, ws, c.Snapshot())
}

// queryHandler applies a partial change to search term, page, sort or view mode.
func (handlers *handlers) queryHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	var update models.QueryUpdate
	if err := readJSON(req, &update); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := ws.UpdateQuery(ctx, chi.URLParam(req, "resource"), update)
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	handlers.writeView(res, ws, view)
}

// reloadHandler revalidates the current query and answers once it has settled.
func (handlers *handlers) reloadHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	c, err := ws.List(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}

	select {
	case <-c.Reload():
	case <-ctx.Done():
	}
	handlers.writeView(res, ws, c.Snapshot())
}

// drawerOpenHandler opens the drawer empty, or on a loaded entity when an id is given.
func (handlers *handlers) drawerOpenHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	var openRequest models.DrawerOpenRequest
	if err := readJSON(req, &openRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	resourceName := chi.URLParam(req, "resource")
	if openRequest.ID != "" {
		d, err := ws.OpenEdit(resourceName, openRequest.ID)
		if err != nil {
			handlers.writeError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, d.State())
		return
	}

	d, err := ws.Drawer(resourceName)
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	d.OpenCreate()
	writeJSON(res, http.StatusOK, d.State())
}

func (handlers *handlers) drawerStateHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	d, err := ws.Drawer(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, d.State())
}

// drawerEditHandler changes draft fields. The edit is all or nothing: one
// rejected field leaves the draft untouched and the 400 lists every rejection.
func (handlers *handlers) drawerEditHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	var editRequest models.DrawerEditRequest
	if err := readJSON(req, &editRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := ws.Drawer(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	if err := d.SetValues(editRequest.Values); err != nil {
		handlers.writeError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, d.State())
}

func (handlers *handlers) drawerCancelHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	d, err := ws.Drawer(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	d.Cancel()
	writeJSON(res, http.StatusOK, d.State())
}

// drawerImageHandler stages an uploaded image on a drawer field. The form
// carries the target field name in "field" and the image in "file".
func (handlers *handlers) drawerImageHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	d, err := ws.Drawer(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}

	req.Body = http.MaxBytesReader(res, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		writeErrorResponse(res, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := d.StageImage(req.FormValue("field"), header.Filename, file); err != nil {
		handlers.writeError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, d.State())
}

// drawerSubmitHandler sends the draft upstream. Rejections answer with the
// drawer's per-field messages under their local names.
func (handlers *handlers) drawerSubmitHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	d, err := ws.Drawer(chi.URLParam(req, "resource"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}

	if err := d.Submit(ctx); err != nil {
		if apierr.IsAuth(err) {
			handlers.writeError(res, err)
			return
		}
		writeJSON(res, apierr.HTTPStatus(err), models.ErrorResponse{
			Errors: apierr.PublicMessage(err),
			Fields: d.State().FieldErrors,
		})
		return
	}
	writeJSON(res, http.StatusOK, d.State())
}

// deleteOpenHandler asks for confirmation before deleting a loaded entity.
func (handlers *handlers) deleteOpenHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	state, err := ws.OpenDelete(chi.URLParam(req, "resource"), chi.URLParam(req, "id"))
	if err != nil {
		handlers.writeError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, state)
}

func (handlers *handlers) confirmStateHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	writeJSON(res, http.StatusOK, ws.Confirm().State())
}

// confirmHandler performs the pending delete.
func (handlers *handlers) confirmHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	dialog := ws.Confirm()
	if err := dialog.Confirm(ctx); err != nil {
		handlers.writeError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, dialog.State())
}

func (handlers *handlers) confirmCancelHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	dialog := ws.Confirm()
	dialog.Cancel()
	writeJSON(res, http.StatusOK, dialog.State())
}

func (handlers *handlers) searchStateHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	writeJSON(res, http.StatusOK, ws.Search().State())
}

// searchTypeHandler records one keystroke; results follow after the debounce period.
func (handlers *handlers) searchTypeHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	var searchRequest models.SearchRequest
	if err := readJSON(req, &searchRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	aggregator := ws.Search()
	aggregator.Type(searchRequest.Term)
	writeJSON(res, http.StatusOK, aggregator.State())
}

// searchKeysHandler moves the selection; Enter answers with the path to navigate to.
func (handlers *handlers) searchKeysHandler(res http.ResponseWriter, req *http.Request) {
	ws, ok := handlers.workspace(res, req)
	if !ok {
		return
	}
	var keyRequest models.SearchKeyRequest
	if err := readJSON(req, &keyRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	key, ok := search.ParseKey(keyRequest.Key)
	if !ok {
		writeErrorResponse(res, "unknown key", http.StatusBadRequest)
		return
	}

	state, path := ws.Search().Key(key)
	writeJSON(res, http.StatusOK, searchKeyResponse{State: state, Path: path})
}

// workspace resolves the caller's workspace. When it returns false the
// response has already been written.
func (handlers *handlers) workspace(res http.ResponseWriter, req *http.Request) (*app.Workspace, bool) {
	sessionID, ok := auth.SessionID(req.Context())
	if !ok {
		auth.WriteUnauthorized(res, "unauthorized", handlers.loginRoute)
		return nil, false
	}
	ws, err := handlers.app.Workspace(req.Context(), sessionID)
	if err != nil {
		handlers.writeError(res, err)
		return nil, false
	}
	return ws, true
}

// writeView answers with a list snapshot, or with 401 once the upstream API
// has rejected the session's token.
func (handlers *handlers) writeView(res http.ResponseWriter, ws *app.Workspace, view resource.View) {
	if signedOut, _ := ws.Session().SignedOut(); signedOut {
		auth.WriteUnauthorized(res, apierr.AuthErr(http.StatusUnauthorized).Message, handlers.loginRoute)
		return
	}
	writeJSON(res, http.StatusOK, view)
}

func (handlers *handlers) writeError(res http.ResponseWriter, err error) {
	switch {
	case apierr.IsAuth(err):
		auth.WriteUnauthorized(res, apierr.PublicMessage(err), handlers.loginRoute)
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, app.ErrSessionRevoked):
		auth.WriteUnauthorized(res, "session is no longer valid", handlers.loginRoute)
	case errors.Is(err, app.ErrUnknownResource):
		writeErrorResponse(res, "unknown resource", http.StatusNotFound)
	case errors.Is(err, app.ErrEntityNotLoaded):
		writeErrorResponse(res, "entity is not on the current page", http.StatusNotFound)
	default:
		ae, ok := apierr.As(err)
		if !ok {
			handlers.log.Error("request failed", zap.Error(err))
			writeErrorResponse(res, apierr.PublicMessage(err), http.StatusInternalServerError)
			return
		}
		writeJSON(res, apierr.HTTPStatus(err), models.ErrorResponse{Errors: apierr.PublicMessage(ae), Fields: ae.Fields})
	}
}

// readJSON decodes the request body into v. An empty body leaves v untouched;
// numbers are kept as json.Number so draft values keep their precision.
func readJSON(req *http.Request, v any) error {
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(requestBody)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(requestBody))
	decoder.UseNumber()
	return decoder.Decode(v)
}

func writeJSON(res http.ResponseWriter, statusCode int, v any) {
	result, err := json.Marshal(v)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
