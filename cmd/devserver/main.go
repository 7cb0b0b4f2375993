package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"marketclient/internal/config"
	"marketclient/internal/fakeapi"
)

// devserver runs the in-memory marketplace API standalone so the client CLI
// and manual testers have something to talk to. Every OTP challenge accepts
// the printed code; state lives until the process exits.
func main() {
	cfg := config.LoadConfig()
	logger := setupLogger(cfg.Env)

	api := fakeapi.NewServer()
	e := fakeapi.NewEcho(api, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("dev API starting", slog.String("addr", addr), slog.String("otp", api.OTPCode()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown: on interrupt, give in-flight requests five seconds.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down dev API...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutDownCtx); err != nil {
			logger.Error("shutdown failed", slog.String("error", err.Error()))
			return err
		}
		logger.Info("dev API stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("dev API stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// setupLogger configures the logger based on the environment (production, development, local).
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "production":
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "development", "local":
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
