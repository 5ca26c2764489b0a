package routes

import (
	carthandler "b2bcart/internal/handlers/cart"
	"b2bcart/internal/middleware"
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Routes struct {
	log         *slog.Logger
	cartHandler *carthandler.Handler
	pinger      Pinger
	jwtSecret   string
}

func New(log *slog.Logger, cartHandler *carthandler.Handler, pinger Pinger, jwtSecret string) *Routes {
	return &Routes{
		log:         log,
		cartHandler: cartHandler,
		pinger:      pinger,
		jwtSecret:   jwtSecret,
	}
}

// Handler builds the request tree. Every /cart route requires a bearer token.
func (r *Routes) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthJWT(r.log, r.jwtSecret)

	cart := map[string]http.HandlerFunc{
		"GET /cart":                   r.cartHandler.GetCart,
		"DELETE /cart":                r.cartHandler.ClearCart,
		"POST /cart/items":            r.cartHandler.AddItem,
		"PATCH /cart/items/{itemId}":  r.cartHandler.UpdateItem,
		"DELETE /cart/items/{itemId}": r.cartHandler.RemoveItem,
		"POST /cart/bulk-import":      r.cartHandler.BulkImport,
	}
	for pattern, h := range cart {
		mux.Handle(pattern, auth(h))
	}

	mux.HandleFunc("GET /healthz", r.health)

	return middleware.Logger(r.log)(mux)
}

// GET /healthz
func (r *Routes) health(ww http.ResponseWriter, req *http.Request) {
	ww.Header().Set("Content-Type", "application/json")

	status, code := "ok", http.StatusOK
	if err := r.pinger.Ping(req.Context()); err != nil {
		r.log.Warn("Health check failed", sl.Err(err))
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	ww.WriteHeader(code)
	_ = json.NewEncoder(ww).Encode(map[string]string{"status": status})
}
