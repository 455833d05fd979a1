package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/admin-session/auth"
	"github.com/jrsteele09/admin-session/internal/config"
	"github.com/jrsteele09/admin-session/internal/logging"
	"github.com/jrsteele09/admin-session/server"
	"github.com/jrsteele09/admin-session/token"
	"github.com/jrsteele09/admin-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/admin-session/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/admin-session/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger := logging.New(c)
	displayAppname(c.GetAppName())

	handler, err := newHandler(c)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	logger.Info().Msg("Shutting down")
	return shutdown(httpServer)
}

// newHandler wires the in-memory repositories, token managers and the HTTP API.
func newHandler(c config.Config) (http.Handler, error) {
	userRepo := fakeuserrepo.NewFakeUserRepo()
	accessTokens := token.New(token.NewHMACSigner(c.GetJWTSecret()),
		token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()))
	refreshTokens := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(),
		refresh.WithExpiry(c.GetRefreshTokenExpiry()))

	authService, err := auth.NewService(userRepo, accessTokens, refreshTokens)
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := server.New(c, authService, userRepo, server.WithRegistry(registry), server.WithLogger(log.Logger))
	if err != nil {
		return nil, fmt.Errorf("server.New: %w", err)
	}
	return s, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
