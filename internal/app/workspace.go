package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"store_admin/internal/confirm"
	"store_admin/internal/events"
	"store_admin/internal/form"
	"store_admin/internal/gateway"
	"store_admin/internal/models"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/resource"
	"store_admin/internal/search"
	"store_admin/internal/session"
)

// Workspace holds the UI state containers of one signed-in admin. List
// controllers and drawers are created on first use; all of them share one
// gateway and one invalidation bus.
type Workspace struct {
	app     *App
	session *session.Session
	gateway *gateway.Client
	bus     *events.Bus
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	confirm *confirm.Dialog
	search  *search.Aggregator

	mu          sync.Mutex
	closed      bool
	lists       map[string]*resource.Controller
	drawers     map[string]*form.Drawer
	prefs       map[string]models.Preference
	unsubscribe []func()
}

func (app *App) openWorkspace(ctx context.Context, record *models.SessionRecord, token string) (*Workspace, error) {
	sess := session.New(record.ID, record.Subject, token)
	log := app.log.Component("workspace", zap.String("session", record.ID))

	client, err := gateway.New(gateway.Config{
		BaseURL:     app.cfg.UpstreamURL,
		Credentials: sess,
		HTTPClient:  app.cfg.HTTPClient,
		Timeout:     app.cfg.RequestTimeout,
		Log:         log,
		Metrics:     app.cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	prefs := make(map[string]models.Preference)
	if record.Subject != "" {
		loaded, err := app.db.LoadPreferences(ctx, record.Subject)
		if err != nil {
			log.Warn("loading view preferences failed", zap.Error(err))
		}
		for _, p := range loaded {
			prefs[p.Resource] = p
		}
	}

	wsCtx, cancel := context.WithCancel(context.Background())
	bus := events.NewBus()
	ws := &Workspace{
		app:     app,
		session: sess,
		gateway: client,
		bus:     bus,
		log:     log,
		ctx:     wsCtx,
		cancel:  cancel,
		confirm: confirm.New(client, bus, log),
		search: search.New(wsCtx, client, search.DefaultSources, search.Options{
			Debounce: app.cfg.SearchDebounce,
			Clock:    app.cfg.Clock,
			Log:      log,
			Metrics:  app.cfg.Metrics,
		}),
		lists:   make(map[string]*resource.Controller),
		drawers: make(map[string]*form.Drawer),
		prefs:   prefs,
	}

	sess.OnSignOut(func(reason string) { app.signedOut(ws, reason) })
	app.cfg.Metrics.WorkspaceOpened()
	log.Debug("workspace opened")
	return ws, nil
}

// Session returns the session the workspace belongs to.
func (ws *Workspace) Session() *session.Session { return ws.session }

// Confirm returns the delete confirmation dialog.
func (ws *Workspace) Confirm() *confirm.Dialog { return ws.confirm }

// Search returns the quick-search aggregator.
func (ws *Workspace) Search() *search.Aggregator { return ws.search }

// List returns the list controller of a resource, creating it (and issuing its
// first fetch) on first use. The controller re-queries whenever the resource
// is invalidated.
func (ws *Workspace) List(name string) (*resource.Controller, error) {
	desc, ok := resource.Lookup(name)
	if !ok {
		return nil, ErrUnknownResource
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil, ErrSessionRevoked
	}
	if c, ok := ws.lists[name]; ok {
		return c, nil
	}

	pref := ws.prefs[name]
	c := resource.New(ws.ctx, desc, ws.gateway, resource.Options{
		Debounce:      ws.app.cfg.SearchDebounce,
		Clock:         ws.app.cfg.Clock,
		ViewMode:      pref.ViewMode,
		SortKey:       pref.SortKey,
		SortDirection: pref.SortDirection,
		Log:           ws.log,
		Metrics:       ws.app.cfg.Metrics,
	})
	ws.lists[name] = c
	ws.unsubscribe = append(ws.unsubscribe, ws.bus.Subscribe(name, func(evt events.ResourceChanged) {
		ws.app.cfg.Metrics.Invalidated(evt.Resource)
		c.Reload()
	}))
	return c, nil
}

// UpdateQuery applies a partial query change to a list. Sort and view mode
// changes are remembered for the admin's next session.
func (ws *Workspace) UpdateQuery(ctx context.Context, name string, upd models.QueryUpdate) (resource.View, error) {
	c, err := ws.List(name)
	if err != nil {
		return resource.View{}, err
	}
	if err := c.Update(upd); err != nil {
		return resource.View{}, err
	}
	view := c.Snapshot()
	if upd.SortKey != nil || upd.SortDirection != nil || upd.ToggleSort != nil || upd.ViewMode != nil {
		ws.savePreference(ctx, view)
	}
	return view, nil
}

func (ws *Workspace) savePreference(ctx context.Context, view resource.View) {
	subject := ws.session.Subject()
	if subject == "" {
		return
	}
	pref := models.Preference{
		Subject:       subject,
		Resource:      view.Resource,
		ViewMode:      view.ViewMode,
		SortKey:       view.Query.SortKey,
		SortDirection: view.Query.SortDirection,
	}

	ws.mu.Lock()
	ws.prefs[view.Resource] = pref
	ws.mu.Unlock()

	if err := ws.app.db.SavePreference(ctx, pref); err != nil {
		ws.log.Warn("saving view preference failed", zap.String("resource", view.Resource), zap.Error(err))
	}
}

// Drawer returns the form drawer of a resource.
func (ws *Workspace) Drawer(name string) (*form.Drawer, error) {
	schema, ok := form.Lookup(name)
	if !ok {
		return nil, ErrUnknownResource
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil, ErrSessionRevoked
	}
	if d, ok := ws.drawers[name]; ok {
		return d, nil
	}
	d := form.NewDrawer(schema, ws.gateway, ws.bus, form.Options{Image: ws.app.cfg.Image, Log: ws.log})
	ws.drawers[name] = d
	return d, nil
}

// Entity finds an entity on the page the list of name currently shows.
func (ws *Workspace) Entity(name, id string) (models.Entity, error) {
	c, err := ws.List(name)
	if err != nil {
		return nil, err
	}
	for _, e := range c.Snapshot().Items {
		if e.Key() == id {
			return e, nil
		}
	}
	return nil, ErrEntityNotLoaded
}

// OpenEdit opens the drawer of name on a loaded entity.
func (ws *Workspace) OpenEdit(name, id string) (*form.Drawer, error) {
	d, err := ws.Drawer(name)
	if err != nil {
		return nil, err
	}
	e, err := ws.Entity(name, id)
	if err != nil {
		return nil, err
	}
	if err := d.OpenEdit(e); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDelete asks for confirmation before deleting a loaded entity.
func (ws *Workspace) OpenDelete(name, id string) (confirm.State, error) {
	e, err := ws.Entity(name, id)
	if err != nil {
		return confirm.State{}, err
	}
	ws.confirm.Open(e)
	return ws.confirm.State(), nil
}

// Close stops every controller and abandons in-flight requests. It does not
// sign the session out.
func (ws *Workspace) Close() {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return
	}
	ws.closed = true
	lists := ws.lists
	unsubscribe := ws.unsubscribe
	ws.lists = map[string]*resource.Controller{}
	ws.drawers = map[string]*form.Drawer{}
	ws.unsubscribe = nil
	ws.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	for _, c := range lists {
		c.Close()
	}
	ws.search.Close()
	ws.cancel()
	ws.app.cfg.Metrics.WorkspaceClosed()
	ws.log.Debug("workspace closed")
}
