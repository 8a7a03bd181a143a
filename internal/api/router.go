package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/hotel-distribution/internal/api/middleware"
	"github.com/example/hotel-distribution/internal/auth"
)

type RouterConfig struct {
	Handlers        *Handlers
	ChannelHandlers *ChannelHandlers
	AuthHandlers    *AuthHandlers
	JWTService      *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(withLogging)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/auth/token", cfg.AuthHandlers.IssueToken).Methods("POST")

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.AuthMiddleware(cfg.JWTService))

	// ARI pipeline
	authed.HandleFunc("/ari/events", cfg.Handlers.IngestEvent).Methods("POST")
	authed.HandleFunc("/ari/events/{id}", cfg.Handlers.GetEvent).Methods("GET")
	authed.HandleFunc("/ari/dead-letters", cfg.Handlers.ListDeadLetters).Methods("GET")
	authed.HandleFunc("/ari/bulk", cfg.Handlers.BulkUpdate).Methods("POST")

	// Quote gating
	authed.HandleFunc("/quote/validate", cfg.Handlers.ValidateQuote).Methods("POST")

	// Channel management; mode changes and audits are manager-only.
	managerOnly := middleware.RequireRole(auth.RoleManager)
	authed.HandleFunc("/channels", cfg.ChannelHandlers.ListChannels).Methods("GET")
	authed.HandleFunc("/channels/{id}/mode", cfg.ChannelHandlers.GetMode).Methods("GET")
	authed.Handle("/channels/{id}/mode", managerOnly(http.HandlerFunc(cfg.ChannelHandlers.SetMode))).Methods("PUT")
	authed.HandleFunc("/channels/{id}/mode/history", cfg.ChannelHandlers.ModeHistory).Methods("GET")
	authed.Handle("/channels/audit", managerOnly(http.HandlerFunc(cfg.ChannelHandlers.RunAudit))).Methods("POST")

	return r
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
