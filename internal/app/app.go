// Package app provides the core logic of the admin console.
// It turns an upstream token handoff into a console session, keeps one
// workspace of UI state containers per live session, and ends sessions either
// on request or when the upstream API rejects their token.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"store_admin/internal/models"
	"store_admin/internal/pkg/auth"
	"store_admin/internal/pkg/debounce"
	"store_admin/internal/pkg/imaging"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
	"store_admin/internal/pkg/security"
	"store_admin/internal/storage"
)

// Predefined errors for console-level conditions.
var (
	// ErrMissingToken indicates that the handoff carried no upstream token.
	ErrMissingToken = errors.New("app: missing upstream token")
	// ErrSessionNotFound indicates an unknown or unreadable console session.
	ErrSessionNotFound = errors.New("app: session not found")
	// ErrSessionRevoked indicates a session that was signed out or has expired.
	ErrSessionRevoked = errors.New("app: session revoked")
	// ErrUnknownResource indicates a collection the console does not manage.
	ErrUnknownResource = errors.New("app: unknown resource")
	// ErrEntityNotLoaded indicates an id that is not on the currently loaded page.
	ErrEntityNotLoaded = errors.New("app: entity is not on the current page")
)

const (
	sessionIDAttempts = 3
	revokeTimeout     = 5 * time.Second
)

// Config carries the settings shared by every workspace.
type Config struct {
	UpstreamURL    string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	SearchDebounce time.Duration
	Image          imaging.Options
	// Clock drives every debouncer; nil means wall-clock time.
	Clock   debounce.Clock
	Issuer  *auth.Issuer
	Sealer  *security.Sealer
	Metrics *metrics.Collector
}

// App encapsulates the application logic and its dependencies.
type App struct {
	db    storage.Storage
	log   *logger.Logger
	cfg   Config
	newID func() string
	now   func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewApp creates and returns a new instance of App.
func NewApp(db storage.Storage, log *logger.Logger, cfg Config) *App {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		db:         db,
		log:        log,
		cfg:        cfg,
		newID:      uuid.NewString,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// ProcessSessionStart accepts an upstream bearer token from the external auth
// provider, stores it sealed and returns a console token naming the new session.
func (app *App) ProcessSessionStart(ctx context.Context, req models.SessionRequest) (*models.SessionResponse, error) {
	if req.Token == "" {
		return nil, ErrMissingToken
	}

	sealed, err := app.cfg.Sealer.Seal(req.Token)
	if err != nil {
		return nil, err
	}

	var pgError *pgconn.PgError
	for attempt := 1; ; attempt++ {
		id := app.newID()
		token, expiresAt, err := app.cfg.Issuer.GenerateToken(id)
		if err != nil {
			return nil, err
		}

		record := &models.SessionRecord{
			ID:          id,
			Subject:     req.Subject,
			SealedToken: sealed,
			CreatedAt:   app.now(),
			ExpiresAt:   expiresAt,
		}
		err = app.db.CreateSession(ctx, record)
		if err == nil {
			app.log.Info("session started", zap.String("session", id), zap.String("subject", req.Subject))
			return &models.SessionResponse{Token: token, ExpiresAt: expiresAt}, nil
		}
		if !errors.As(err, &pgError) || pgError.Code != pgerrcode.UniqueViolation || attempt == sessionIDAttempts {
			return nil, err
		}
		app.log.Warn("session id collision, retrying", zap.String("session", id))
	}
}

// ProcessSessionEnd signs the session out. Ending an unknown or already ended
// session is not an error.
func (app *App) ProcessSessionEnd(ctx context.Context, sessionID string) error {
	app.mu.Lock()
	ws := app.workspaces[sessionID]
	app.mu.Unlock()

	if ws != nil {
		ws.session.SignOut("user request")
		return nil
	}
	return app.db.RevokeSession(ctx, sessionID)
}

// Workspace returns the live workspace of a session, creating it on first use.
// Storage is read without holding app.mu; when two requests race to open the
// same session, the first one registered wins and the other is closed.
func (app *App) Workspace(ctx context.Context, sessionID string) (*Workspace, error) {
	app.mu.Lock()
	ws, ok := app.workspaces[sessionID]
	app.mu.Unlock()
	if ok {
		return ws, nil
	}

	record, err := app.db.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.RevokedAt != nil || !app.now().Before(record.ExpiresAt) {
		return nil, ErrSessionRevoked
	}
	token, err := app.cfg.Sealer.Open(record.SealedToken)
	if err != nil {
		app.log.Warn("session token cannot be opened", zap.String("session", sessionID), zap.Error(err))
		return nil, ErrSessionNotFound
	}

	opened, err := app.openWorkspace(ctx, record, token)
	if err != nil {
		return nil, err
	}

	app.mu.Lock()
	if ws, ok := app.workspaces[sessionID]; ok {
		app.mu.Unlock()
		opened.Close()
		return ws, nil
	}
	app.workspaces[sessionID] = opened
	app.mu.Unlock()
	return opened, nil
}

// PurgeExpiredSessions removes expired session rows and returns how many went.
func (app *App) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := app.db.PurgeExpiredSessions(ctx, app.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		app.log.Info("purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (app *App) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.PurgeExpiredSessions(ctx); err != nil {
				app.log.Warn("purging expired sessions failed", zap.Error(err))
			}
		}
	}
}

// Shutdown closes every live workspace without signing any session out.
func (app *App) Shutdown() {
	app.mu.Lock()
	live := make([]*Workspace, 0, len(app.workspaces))
	for id, ws := range app.workspaces {
		live = append(live, ws)
		delete(app.workspaces, id)
	}
	app.mu.Unlock()

	for _, ws := range live {
		ws.Close()
	}
}

// signedOut runs once per session when it is terminated for any reason.
func (app *App) signedOut(ws *Workspace, reason string) {
	id := ws.session.ID()

	app.mu.Lock()
	if app.workspaces[id] == ws {
		delete(app.workspaces, id)
	}
	app.mu.Unlock()

	ws.Close()
	app.cfg.Metrics.SignedOut()

	ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
	defer cancel()
	if err := app.db.RevokeSession(ctx, id); err != nil {
		app.log.Error("revoking session failed", zap.String("session", id), zap.Error(err))
	}
	app.log.Info("session signed out", zap.String("session", id), zap.String("reason", reason))
}
