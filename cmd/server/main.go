package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietpieces/ya-note/internal/auth"
	"github.com/quietpieces/ya-note/internal/config"
	"github.com/quietpieces/ya-note/internal/db"
	"github.com/quietpieces/ya-note/internal/notes"
	"github.com/quietpieces/ya-note/internal/obs"
	"github.com/quietpieces/ya-note/internal/web"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	obs.Init()
	log := obs.Pkg("main")

	addr := config.ParseFlags()
	cfg := config.MustLoadConfig(addr)
	cfg.PrintStartupSummary()

	sqlDB, err := db.Open(cfg.DatabasePath, cfg.DatabaseKey)
	if err != nil {
		log.Error("database open failed", slog.String("path", cfg.DatabasePath), slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	userService := auth.NewUserService(sqlDB)
	sessionService := auth.NewSessionService(sqlDB, cfg.SessionDuration)
	notesService := notes.NewService(sqlDB)

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Error("template load failed", slog.String("dir", cfg.TemplatesDir), slog.Any("error", err))
		os.Exit(1)
	}

	handler := web.NewWebHandler(renderer, notesService, userService, sessionService, cfg.RequireSecureCookies())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewMiddleware(sessionService))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      obs.RequestContextMiddleware(obs.AccessLogMiddleware("web", mux)),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupExpiredSessions(ctx, sessionService, log)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", slog.Any("error", err))
		}
	}()

	log.Info("server starting", slog.String("addr", cfg.ListenAddr), slog.String("base_url", cfg.BaseURL))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// cleanupExpiredSessions prunes expired sessions until ctx is cancelled.
func cleanupExpiredSessions(ctx context.Context, sessions *auth.SessionService, log *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.Cleanup(ctx); err != nil {
				log.Warn("session cleanup failed", slog.Any("error", err))
			}
		}
	}
}
