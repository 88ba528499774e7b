package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"store_admin/internal/app"
	"store_admin/internal/config"
	"store_admin/internal/pkg/auth"
	"store_admin/internal/pkg/imaging"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
	"store_admin/internal/pkg/security"
	"store_admin/internal/service"
	"store_admin/internal/storage"
)

const janitorInterval = 10 * time.Minute

func main() {
	var l *logger.Logger
	var err error
	if l, err = logger.CreateLogger(config.LogLevel); err != nil {
		log.Fatal("Failed to create logger:", err)
	}

	storage, err := storage.NewPostgreSQL(config.DatabaseURI, l)
	if err != nil {
		log.Fatal(err)
	}
	defer storage.Close()

	const migrateTimeout = 30 * time.Second
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), migrateTimeout)
	err = storage.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		log.Fatal(err)
	}

	issuer := auth.NewIssuer(config.SessionSecret, config.SessionTTL)
	collector := metrics.New()
	app := app.NewApp(storage, l, app.Config{
		UpstreamURL:    config.APIBaseURL,
		RequestTimeout: config.RequestTimeout,
		SearchDebounce: config.SearchDebounce,
		Image: imaging.Options{
			MaxWidth:  config.ImageMaxWidth,
			Quality:   config.ImageQuality,
			MaxBytes:  config.ImageMaxBytes,
			MaxPixels: config.ImageMaxPixels,
		},
		Issuer:  issuer,
		Sealer:  security.NewSealer(config.SessionSecret),
		Metrics: collector,
	})
	service := service.NewService(app, issuer, collector, config.ServerRunAddress, config.LoginRoute, l)

	const readHeaderTimeout = 5 * time.Second
	server := &http.Server{Addr: service.RunAddress(), Handler: service.NewRouter(), ReadHeaderTimeout: readHeaderTimeout}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	go app.RunJanitor(serverCtx, janitorInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		app.Shutdown()
		serverStopCtx()
	}()

	l.Info("console started", zap.String("address", service.RunAddress()), zap.String("upstream", config.APIBaseURL))
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	<-serverCtx.Done()
}
