package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"carsentry/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// Config carries the orchestration knobs supplied by the configuration layer.
type Config struct {
	// MaxPages is the page budget of an unscoped global refresh.
	MaxPages int
	// TargetMaxPages is the smaller budget of a filter-scoped job.
	TargetMaxPages int
	// ExpandedMaxPages is the ceiling used by the single widened re-fetch.
	ExpandedMaxPages int
	// MaxConcurrent bounds how many jobs may be actively fetching/upserting.
	MaxConcurrent int64
}

func (c *Config) applyDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.TargetMaxPages <= 0 {
		c.TargetMaxPages = 2
	}
	if c.ExpandedMaxPages <= 0 {
		c.ExpandedMaxPages = 5
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
}

// Submission is the immediate answer to a trigger request.
type Submission struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	Signature string    `json:"signature"`
	Reused    bool      `json:"reused"`
}

// StatusCache mirrors job status into a short-lived cache for cheap polling.
// Implementations may fail; mirroring is always best-effort.
type StatusCache interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error
}

// Manager is the top-level orchestrator. One mutex guards the job table and
// the signature ownership map; no I/O happens while it is held. A weighted
// semaphore bounds how many workers run the pipeline at once, across all
// signatures.
type Manager struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*models.ScrapeJob
	owners map[string]uuid.UUID

	sem      *semaphore.Weighted
	pipeline *Pipeline
	upserter *Upserter
	matcher  *Matcher
	sources  *SourceResolver
	cache    StatusCache
	cfg      Config
}

// NewManager wires an orchestrator instance. cache may be nil.
func NewManager(cfg Config, pipeline *Pipeline, upserter *Upserter, matcher *Matcher, sources *SourceResolver, cache StatusCache) *Manager {
	cfg.applyDefaults()
	return &Manager{
		jobs:     make(map[uuid.UUID]*models.ScrapeJob),
		owners:   make(map[string]uuid.UUID),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		pipeline: pipeline,
		upserter: upserter,
		matcher:  matcher,
		sources:  sources,
		cache:    cache,
		cfg:      cfg,
	}
}

// Submit registers a scrape job for the filter set and starts its worker, or
// returns the already-active job when one with the same signature is pending
// or running. It never blocks on the fetch itself.
func (m *Manager) Submit(filters map[string]string, correlationID string) Submission {
	if correlationID == "" {
		correlationID = "req-" + uuid.NewString()
	}
	sig := Signature(filters)

	m.mu.Lock()
	if ownerID, ok := m.owners[sig]; ok {
		if existing, ok := m.jobs[ownerID]; ok &&
			(existing.Status == models.JobStatusPending || existing.Status == models.JobStatusRunning) {
			sub := Submission{JobID: existing.ID, Status: existing.Status, Signature: sig, Reused: true}
			m.mu.Unlock()
			slog.Info("scrape: reusing active job",
				"job_id", sub.JobID, "signature", sig, "correlation_id", correlationID)
			return sub
		}
	}

	job := &models.ScrapeJob{
		ID:            uuid.New(),
		Signature:     sig,
		Status:        models.JobStatusPending,
		Filters:       cloneFilters(filters),
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.owners[sig] = job.ID
	m.mu.Unlock()

	m.mirrorStatus(job.ID, models.JobStatusPending)
	slog.Info("scrape: job submitted",
		"job_id", job.ID, "signature", sig, "correlation_id", correlationID)

	go m.runJob(job.ID)

	return Submission{JobID: job.ID, Status: models.JobStatusPending, Signature: sig}
}

// Get returns a snapshot of the job's current state. The snapshot is detached
// from the live record; workers can never mutate a caller's view.
func (m *Manager) Get(jobID uuid.UUID) (models.ScrapeJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return models.ScrapeJob{}, false
	}
	return snapshot(job), true
}

// runJob executes one scrape end to end. Ownership of the signature and the
// concurrency permit are released on every exit path, including panics.
func (m *Manager) runJob(jobID uuid.UUID) {
	defer m.releaseOwnership(jobID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape: panic in worker", "job_id", jobID, "error", r)
			m.finish(jobID, models.ScrapeCounters{}, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx := context.Background()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(jobID, models.ScrapeCounters{}, fmt.Errorf("acquiring scrape permit: %w", err))
		return
	}
	defer m.sem.Release(1)

	filters, ok := m.markRunning(jobID)
	if !ok {
		return
	}
	m.mirrorStatus(jobID, models.JobStatusRunning)

	scoped := len(filters) > 0
	budget := m.cfg.MaxPages
	if scoped {
		budget = m.cfg.TargetMaxPages
	}
	sourceURL, matchFilters := m.sources.Resolve(filters)

	slog.Info("scrape: job running",
		"job_id", jobID, "source", sourceURL, "pages", budget, "scoped", scoped)

	var counters models.ScrapeCounters
	listings := m.pipeline.Fetch(ctx, sourceURL, budget)

	if scoped {
		matched := m.matcher.Filter(listings, matchFilters)
		if len(listings) > 0 && len(matched) == 0 && budget < m.cfg.ExpandedMaxPages {
			slog.Info("scrape: no matches in initial pass, expanding",
				"job_id", jobID, "pages", m.cfg.ExpandedMaxPages)
			counters.Expanded = 1
			listings = m.pipeline.Fetch(ctx, sourceURL, m.cfg.ExpandedMaxPages)
			matched = m.matcher.Filter(listings, matchFilters)
		}
		listings = matched
	}
	counters.Fetched = len(listings)

	reconciled := m.upserter.Reconcile(ctx, listings)
	counters.Inserted = reconciled.Inserted
	counters.Updated = reconciled.Updated
	counters.Skipped = reconciled.Skipped
	counters.Failed = reconciled.Failed

	m.finish(jobID, counters, nil)
}

// markRunning transitions the job to running and returns a copy of its filters.
func (m *Manager) markRunning(jobID uuid.UUID) (map[string]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	return cloneFilters(job.Filters), true
}

// finish records the terminal state. A nil runErr means done, even when the
// run found nothing; failure messages are captured verbatim for polling.
func (m *Manager) finish(jobID uuid.UUID, counters models.ScrapeCounters, runErr error) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	job.FinishedAt = &now
	if runErr != nil {
		msg := runErr.Error()
		job.Status = models.JobStatusFailed
		job.Error = &msg
	} else {
		job.Status = models.JobStatusDone
		job.Result = counters
	}
	status := job.Status
	m.mu.Unlock()

	m.mirrorStatus(jobID, status)
	if runErr != nil {
		slog.Error("scrape: job failed", "job_id", jobID, "error", runErr)
		return
	}
	slog.Info("scrape: job done",
		"job_id", jobID,
		"fetched", counters.Fetched,
		"inserted", counters.Inserted,
		"updated", counters.Updated,
		"skipped", counters.Skipped,
		"failed", counters.Failed,
		"expanded", counters.Expanded,
	)
}

// releaseOwnership frees the signature so a future submission can start fresh
// work. The job record itself persists for later status queries.
func (m *Manager) releaseOwnership(jobID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if ownerID, ok := m.owners[job.Signature]; ok && ownerID == jobID {
		delete(m.owners, job.Signature)
	}
}

func (m *Manager) mirrorStatus(jobID uuid.UUID, status string) {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL)
}

func snapshot(job *models.ScrapeJob) models.ScrapeJob {
	copied := *job
	copied.Filters = cloneFilters(job.Filters)
	if job.StartedAt != nil {
		t := *job.StartedAt
		copied.StartedAt = &t
	}
	if job.FinishedAt != nil {
		t := *job.FinishedAt
		copied.FinishedAt = &t
	}
	if job.Error != nil {
		msg := *job.Error
		copied.Error = &msg
	}
	return copied
}

func cloneFilters(filters map[string]string) map[string]string {
	if filters == nil {
		return map[string]string{}
	}
	copied := make(map[string]string, len(filters))
	for k, v := range filters {
		copied[k] = v
	}
	return copied
}
