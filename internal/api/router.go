package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lessonprogress/internal/api/handler"
	"github.com/mcoot/lessonprogress/internal/api/middleware"
	"github.com/mcoot/lessonprogress/internal/events/sse"
	"github.com/mcoot/lessonprogress/internal/services/auth"
	"github.com/mcoot/lessonprogress/internal/services/progress"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	ProgressService *progress.Service
	HubManager      *sse.HubManager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	accountHandler := handler.NewAccountHandler(cfg.AuthService)
	progressHandler := handler.NewProgressHandler(cfg.ProgressService, cfg.HubManager)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Account routes (no auth required for creating accounts/logging in)
	api.HandleFunc("/accounts/guest", accountHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/accounts/register", accountHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/accounts/login", accountHandler.Login).Methods(http.MethodPost)

	// Protected account routes
	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.Use(authMiddleware)
	accounts.HandleFunc("/me", accountHandler.GetMe).Methods(http.MethodGet)
	accounts.HandleFunc("/logout", accountHandler.Logout).Methods(http.MethodPost)

	// Progress routes (all require auth)
	records := api.PathPrefix("/progress").Subrouter()
	records.Use(authMiddleware)
	records.HandleFunc("", progressHandler.Initialize).Methods(http.MethodPost)
	records.HandleFunc("/me", progressHandler.GetMine).Methods(http.MethodGet)
	records.HandleFunc("/{owner}", progressHandler.Get).Methods(http.MethodGet)
	records.HandleFunc("/{owner}/lessons", progressHandler.CompleteLesson).Methods(http.MethodPost)
	records.HandleFunc("/{owner}/events", progressHandler.Events).Methods(http.MethodGet)

	// Public routes
	api.HandleFunc("/layout", handler.Layout(cfg.ProgressService.Layout())).Methods(http.MethodGet)
	api.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	return r
}
