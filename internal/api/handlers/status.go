package handlers

import (
	"net/http"

	"github.com/quantfeed/marketpulse/internal/scheduler"
	"github.com/quantfeed/marketpulse/pkg/database"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// StatusHandler serves operational status: database health, pool stats and
// scheduler job statistics.
type StatusHandler struct {
	db        *database.DB
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewStatusHandler creates the status handler. scheduler may be nil when
// the API runs without the embedded scheduler.
func NewStatusHandler(db *database.DB, sched *scheduler.Scheduler, log *logger.Logger) *StatusHandler {
	return &StatusHandler{db: db, scheduler: sched, logger: log}
}

// Status returns the service health snapshot.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	health, err := h.db.HealthCheck(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Database health check failed")
	}
	resp := map[string]interface{}{
		"service":  "marketpulse",
		"database": health,
		"pool":     h.db.Stats(),
	}
	if h.scheduler != nil {
		resp["jobs"] = h.scheduler.GetJobStats()
	}
	respondJSON(w, http.StatusOK, resp)
}

// SchedulerJobs returns per-job statistics.
// GET /api/scheduler/jobs
func (h *StatusHandler) SchedulerJobs(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler not running")
		return
	}
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
