package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"channeld/pkg/api"
	"channeld/pkg/auth"
	"channeld/pkg/notify"
	"channeld/pkg/store"
	"channeld/pkg/telemetry"
	"channeld/pkg/utils"
)

// handler assembles the full HTTP surface: the /v1 API plus the
// operational endpoints, wrapped by metrics and the perimeter middleware.
func (a *App) handler() http.Handler {
	r := api.Router()
	r.Use(telemetry.Middleware)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	var h http.Handler = r
	if max := a.eff.Config.Server.MaxBodySize.Int64(); max > 0 {
		h = limitBody(h, max)
	}
	return auth.PerimeterMiddleware(a.eff.Config.Security)(h)
}

// startHTTP starts the server and returns a channel surfacing a fatal
// serve error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{
		Addr:         a.eff.Addr,
		Handler:      a.handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		tls := a.eff.Config.Server.TLS
		var err error
		if tls.CertFile != "" && tls.KeyFile != "" {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

func limitBody(next http.Handler, max int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next.ServeHTTP(w, r)
	})
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	utils.JSONStatus(w, http.StatusOK, "ok")
}

// readyzHandler reports 503 until the store is open. The broker state is
// reported but never fails readiness: serving continues while degraded.
func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	broker := "disabled"
	if p := notify.Global(); p != nil {
		broker = p.State().String()
	}
	if !store.Ready() {
		_ = utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "broker": broker})
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ready", "broker": broker})
}
