// Package api exposes the pipeline over HTTP: REST reads, the task action
// dispatch endpoint, the scenario harness and a websocket event stream.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfeed/marketpulse/internal/api/handlers"
	"github.com/quantfeed/marketpulse/internal/api/ws"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// RouterDeps bundles the handlers the router mounts. Hub and Status may be
// nil in reduced deployments.
type RouterDeps struct {
	Pipeline *handlers.PipelineHandler
	Scenario *handlers.ScenarioHandler
	Task     *handlers.TaskHandler
	Status   *handlers.StatusHandler
	Hub      *ws.Hub
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps RouterDeps, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Task action dispatch
	api.HandleFunc("/task", deps.Task.Dispatch).Methods("POST")

	// REST aliases
	api.HandleFunc("/signals", deps.Pipeline.ListSignals).Methods("GET")
	api.HandleFunc("/predictors", deps.Pipeline.ListPredictors).Methods("GET")
	api.HandleFunc("/predictions", deps.Pipeline.ListPredictions).Methods("GET")
	api.HandleFunc("/predictions/{id}", deps.Pipeline.GetPrediction).Methods("GET")

	// Test scenario harness
	api.HandleFunc("/test-scenarios", deps.Scenario.List).Methods("GET")
	api.HandleFunc("/test-scenarios", deps.Scenario.Create).Methods("POST")
	api.HandleFunc("/test-scenarios/{id}", deps.Scenario.Get).Methods("GET")
	api.HandleFunc("/test-scenarios/{id}", deps.Scenario.Delete).Methods("DELETE")
	api.HandleFunc("/test-scenarios/{id}/generate", deps.Scenario.Generate).Methods("POST")
	api.HandleFunc("/test-scenarios/{id}/run", deps.Scenario.Run).Methods("POST")
	api.HandleFunc("/test-scenarios/{id}/export", deps.Scenario.Export).Methods("GET")
	api.HandleFunc("/test-scenarios/{id}/archive", deps.Scenario.Archive).Methods("POST")

	// Operational status
	if deps.Status != nil {
		api.HandleFunc("/status", deps.Status.Status).Methods("GET")
		api.HandleFunc("/scheduler/jobs", deps.Status.SchedulerJobs).Methods("GET")
	}

	// Stage event stream
	if deps.Hub != nil {
		r.HandleFunc("/ws", deps.Hub.Handle)
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "marketpulse-api",
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from handler panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
