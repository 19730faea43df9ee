package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"showvault/api"
	"showvault/config"
	"showvault/handlers"
	"showvault/internal/database"
	"showvault/services/events"
	"showvault/services/indexer"
	"showvault/services/scheduler"
	"showvault/services/shows"
	"showvault/utils"
)

func main() {
	configPath := flag.String("config", "settings.json", "path to the settings file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(configPath string) error {
	manager := config.NewManager(configPath)
	settings, err := manager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if settings.Logging.File != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   settings.Logging.File,
			MaxSize:    settings.Logging.MaxSizeMB,
			MaxBackups: settings.Logging.MaxBackups,
		}))
	}

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	repo := database.NewShowRepository(db.Connection())
	bus := events.NewBus()
	indexerSvc := indexer.NewService(settings.Indexer.BaseURL, settings.Indexer.APIKey)
	showsSvc := shows.NewService(repo, indexerSvc, bus, afero.NewOsFs())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewService(showsSvc, bus)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	router := utils.NewRouter()
	router.Use(api.APIKeyMiddleware(func() string {
		s, err := manager.Load()
		if err != nil {
			log.Printf("[main] settings reload failed: %v", err)
			return ""
		}
		return s.Auth.APIKey
	}))

	limiter := api.NewIPRateLimiter(rate.Every(time.Second), 10)
	router.Use(limiter.Middleware())

	handlers.NewShowsHandler(showsSvc, manager).Register(router)
	handlers.NewSettingsHandler(manager, showsSvc).Register(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Printf("[main] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}
