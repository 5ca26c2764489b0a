package app

import (
	carthandler "b2bcart/internal/handlers/cart"
	"b2bcart/internal/pricing"
	"b2bcart/internal/routes"
	cartservice "b2bcart/internal/service/cart"
	"b2bcart/pkg/config"
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/shopspring/decimal"
)

type CartStorage interface {
	cartservice.CartStorage
	routes.Pinger
}

type App struct {
	log     *slog.Logger
	cfg     *config.Config
	storage CartStorage
	server  *http.Server
}

func New(log *slog.Logger, cfg *config.Config, taxRate decimal.Decimal, storage CartStorage) *App {
	cartService := cartservice.New(log, storage, pricing.NewAggregator(taxRate))
	cartHandler := carthandler.New(log, cartService, cfg.Cart.MaxImportBytes)
	router := routes.New(log, cartHandler, storage, cfg.Auth.JWTSecret)

	return &App{
		log:     log,
		cfg:     cfg,
		storage: storage,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      router.Handler(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

// Run listens on the configured port and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"

	l, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.log.With("op", op).Error("Cannot listen", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return a.Serve(ctx, l)
}

// Serve handles connections on l. Once ctx is done it stops accepting and waits for
// in-flight requests, up to the shutdown timeout. Request contexts do not derive from ctx.
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	const op = "app.Serve"
	log := a.log.With("op", op)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", slog.String("addr", l.Addr().String()))
		if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
