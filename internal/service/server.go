package service

import (
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"store_admin/internal/app"
	"store_admin/internal/pkg/auth"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
)

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the server's run address, and a logger for event and error logging.
type Service struct {
	handlers   *handlers
	app        *app.App
	issuer     *auth.Issuer
	metrics    *metrics.Collector
	runAddress string
	loginRoute string
	log        *logger.Logger
}

// NewService creates and initializes a new Service instance.
// Every 401 it answers points the front end at loginRoute.
func NewService(app *app.App, issuer *auth.Issuer, collector *metrics.Collector, runAddress, loginRoute string, l *logger.Logger) *Service {
	handlers := newHandlers(app, loginRoute, l)
	return &Service{
		handlers:   handlers,
		app:        app,
		issuer:     issuer,
		metrics:    collector,
		runAddress: runAddress,
		loginRoute: loginRoute,
		log:        l,
	}
}

// RunAddress is the address the HTTP server listens on.
func (service *Service) RunAddress() string {
	return service.runAddress
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// The token handoff and the metrics endpoint are public; everything else requires a console token.
func (service *Service) NewRouter() chi.Router {
	h := service.handlers

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer)
	router.Use(service.log.WithLogging())
	router.Post("/api/session", h.sessionStartHandler)
	router.Handle("/metrics", service.metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(auth.CheckJWTMiddleware(service.issuer, service.loginRoute))
		r.Delete("/api/session", h.sessionEndHandler)

		r.Route("/api/resources/{resource}", func(r chi.Router) {
			r.Get("/", h.listHandler)
			r.Post("/query", h.queryHandler)
			r.Post("/reload", h.reloadHandler)

			r.Post("/drawer", h.drawerOpenHandler)
			r.Get("/drawer", h.drawerStateHandler)
			r.Patch("/drawer", h.drawerEditHandler)
			r.Delete("/drawer", h.drawerCancelHandler)
			r.Post("/drawer/image", h.drawerImageHandler)
			r.Post("/drawer/submit", h.drawerSubmitHandler)

			r.Post("/{id}/delete", h.deleteOpenHandler)
		})

		r.Get("/api/confirm", h.confirmStateHandler)
		r.Post("/api/confirm", h.confirmHandler)
		r.Delete("/api/confirm", h.confirmCancelHandler)

		r.Get("/api/search", h.searchStateHandler)
		r.Post("/api/search", h.searchTypeHandler)
		r.Post("/api/search/keys", h.searchKeysHandler)
	})
	return router
}
