// Package api exposes the HTTP trigger for connection syncs.
package api

import (
	"net/http"

	"github.com/dvloznov/bank-sync/internal/api/handlers"
	"github.com/dvloznov/bank-sync/internal/api/middleware"
	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of the API.
type Deps struct {
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Log       zerolog.Logger

	// AuthToken protects /api/v1; empty leaves it open.
	AuthToken string
}

// NewRouter builds the API routes. /healthz is never authenticated.
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logger(deps.Log), middleware.RequestID, middleware.Recovery)

	router.HandleFunc("/healthz", handlers.Health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.Auth(deps.AuthToken))
	handlers.NewSyncHandler(deps.Publisher).RegisterRoutes(v1)
	handlers.NewJobsHandler(deps.JobStore).RegisterRoutes(v1)

	// A subrouter answers for every path under its prefix, so it needs the
	// same error handlers as the root.
	for _, r := range []*mux.Router{router, v1} {
		r.NotFoundHandler = http.HandlerFunc(notFound)
		r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
	return router
}

func notFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, "Not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
