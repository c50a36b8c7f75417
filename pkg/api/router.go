// Package api assembles the versioned HTTP surface. Handlers stay thin:
// decode, call the manager, map the error, encode. All authorization
// decisions live behind the managers.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"channeld/pkg/api/handlers"
	"channeld/pkg/auth"
	"channeld/pkg/utils"
)

// Router returns the /v1 API router. Every route requires a verified
// identity; the perimeter middleware (CORS, rate limiting, metrics) is
// applied by the caller around the whole server.
func Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireIdentity)
	handlers.RegisterChannels(v1)
	handlers.RegisterMessages(v1)
	return r
}
