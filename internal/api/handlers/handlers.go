package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/bank-sync/internal/api/middleware"
	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// SyncHandler enqueues connection syncs.
type SyncHandler struct {
	publisher jobs.Publisher
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(publisher jobs.Publisher) *SyncHandler {
	return &SyncHandler{publisher: publisher}
}

// EnqueueSync handles POST /api/v1/sync
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var payload jobs.SyncPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := jobs.ValidatePayload(payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.SyncConnectionJob{Payload: payload, Trigger: jobs.TriggerManual}
	if err := h.publisher.PublishSync(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Sync queue is shutting down")
			return
		}
		log.Error().Err(err).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("connection_id", payload.ConnectionID).
		Str("team_id", payload.TeamID).
		Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// RegisterRoutes registers the handler's routes.
func (h *SyncHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sync", h.EnqueueSync).Methods(http.MethodPost)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		ConnectionID: query.Get("connection_id"),
		TeamID:       query.Get("team_id"),
	}
	if status := query.Get("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			filter.Statuses = append(filter.Statuses, jobs.JobStatus(strings.TrimSpace(s)))
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RegisterRoutes registers the handler's routes.
func (h *JobsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet)
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
