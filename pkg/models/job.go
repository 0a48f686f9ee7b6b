package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// ScrapeCounters accumulates the outcome of one scrape run.
type ScrapeCounters struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Expanded int `json:"expanded"`
}

// ScrapeJob tracks one on-demand scrape run. The API returns a job_id on
// POST /api/v1/scrape/trigger; the client polls GET /api/v1/scrape/status/{job_id}
// until status is done or failed. Status transitions are monotonic:
// pending -> running -> done|failed.
type ScrapeJob struct {
	ID            uuid.UUID         `json:"job_id"`
	Signature     string            `json:"signature"`
	Status        string            `json:"status"`
	Filters       map[string]string `json:"filters"`
	CorrelationID string            `json:"correlation_id"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	Error         *string           `json:"error,omitempty"`
	Result        ScrapeCounters    `json:"result"`
}
