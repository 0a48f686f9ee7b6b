package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"carsentry/internal/api/response"
	"carsentry/internal/scrape"
	"carsentry/pkg/models"
)

// allowedFilterKeys is the set of filter keys a trigger request may carry.
var allowedFilterKeys = map[string]bool{
	"brand":     true,
	"model":     true,
	"color":     true,
	"min_price": true,
	"max_price": true,
	"min_year":  true,
	"max_year":  true,
}

// JobManager defines the interface the scrape handlers depend on.
type JobManager interface {
	Submit(filters map[string]string, correlationID string) scrape.Submission
	Get(jobID uuid.UUID) (models.ScrapeJob, bool)
}

// NewTriggerHandler returns an http.HandlerFunc for POST /api/v1/scrape/trigger.
func NewTriggerHandler(mgr JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filters       map[string]any `json:"filters"`
			CorrelationID string         `json:"correlation_id"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
		}

		for key := range req.Filters {
			if !allowedFilterKeys[key] {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Unknown filter key: "+key, nil)
				return
			}
		}

		filters := scrape.NormalizeFilters(req.Filters)
		sub := mgr.Submit(filters, req.CorrelationID)

		body := triggerResponse{
			JobID:     sub.JobID,
			Status:    sub.Status,
			Signature: sub.Signature,
			Reused:    sub.Reused,
		}
		if sub.Reused {
			response.JSON(w, body)
			return
		}
		response.Accepted(w, body)
	}
}

type triggerResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	Signature string    `json:"signature"`
	Reused    bool      `json:"reused"`
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/scrape/status/{jobID}.
func NewJobStatusHandler(mgr JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job ID must be a valid UUID", nil)
			return
		}

		job, ok := mgr.Get(jobID)
		if !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with that ID", nil)
			return
		}

		response.JSON(w, jobStatusResponse{
			ScrapeJob:  job,
			AgeSeconds: int(time.Since(job.CreatedAt).Seconds()),
		})
	}
}

type jobStatusResponse struct {
	models.ScrapeJob
	AgeSeconds int `json:"age_seconds"`
}
