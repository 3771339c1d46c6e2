package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vibelinechat/vibeline/internal/adapter/driven/auth/jwtauth"
	callmem "github.com/vibelinechat/vibeline/internal/adapter/driven/call/memory"
	"github.com/vibelinechat/vibeline/internal/adapter/driven/gateway/ws"
	logmem "github.com/vibelinechat/vibeline/internal/adapter/driven/persistence/memory"
	"github.com/vibelinechat/vibeline/internal/adapter/driven/persistence/postgres"
	handler "github.com/vibelinechat/vibeline/internal/adapter/driving/http"
	"github.com/vibelinechat/vibeline/internal/config"
	"github.com/vibelinechat/vibeline/internal/core/port"
	"github.com/vibelinechat/vibeline/internal/core/service"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()
	log.Logger = l

	cfg, err := config.Load()
	if err != nil {
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	callLog := openCallLog(ctx, l, cfg)

	recorder := service.NewRecorder(callLog)
	go recorder.Run()

	auth, err := jwtauth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TransportCredentialTTL)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to build auth manager")
	}

	hub := ws.NewHub()
	store := callmem.NewSessionStore()
	callService := service.NewCallService(store, hub, recorder, auth, cfg.Call.Timeout)

	h := handler.NewHandler(callService, hub, auth)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr()).Str("env", cfg.App.Env).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Close()
	recorder.Stop()
	l.Info().Msg("Server exited")
}

// openCallLog wires the durable session log. Signaling must keep working
// without storage, so an unreachable database degrades to the in-memory log
// instead of refusing to boot.
func openCallLog(ctx context.Context, l zerolog.Logger, cfg config.Config) port.CallLog {
	if !cfg.HasDatabase() {
		l.Warn().Msg("No database configured, call history is in-memory only")
		return logmem.NewCallLog()
	}

	db, err := postgres.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		l.Error().Err(err).Msg("Call log database unavailable, falling back to in-memory log")
		return logmem.NewCallLog()
	}
	pgLog, err := postgres.NewCallLog(ctx, db)
	if err != nil {
		l.Error().Err(err).Msg("Call log schema setup failed, falling back to in-memory log")
		db.Close()
		return logmem.NewCallLog()
	}
	l.Info().Msg("Durable call log connected")
	return pgLog
}
