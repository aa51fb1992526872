package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/opentdf/contextvault/internal/version"
	"github.com/opentdf/contextvault/pkg/ledger"
	"github.com/opentdf/contextvault/pkg/storage"
)

type RouterOptions struct {
	Store  storage.Store
	Ledger ledger.Ledger
	// Auth guards the /api routes when set, e.g. auth.OidcAuth.
	Auth           func(http.Handler) http.Handler
	AllowedOrigins []string
}

func NewRouter(ops RouterOptions) chi.Router {
	origins := ops.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetVersion())
	})
	r.Route("/api", func(r chi.Router) {
		if ops.Auth != nil {
			r.Use(ops.Auth)
		}
		r.Mount("/blobs", LoadBlobRoutes(ops.Store))
		r.Mount("/listings", LoadListingRoutes(ops.Ledger))
		r.Mount("/grants", LoadGrantRoutes(ops.Ledger))
	})
	return r
}

// LogRoutes logs every mounted route pattern.
func LogRoutes(r chi.Routes) {
	chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		slog.Info("loaded route", slog.String("method", method), slog.String("route", route))
		return nil
	})
}
