// Package registry keeps completed training jobs in memory, keyed by an
// opaque identifier.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/trainer"
)

// Status of a job. Jobs are only registered once training has completed.
type Status string

const StatusCompleted Status = "completed"

// Job is one completed training run. It must not be modified after Put.
type Job struct {
	ID        string
	Target    string
	Task      preprocessing.Task
	Status    Status
	CreatedAt time.Time
	Result    *trainer.Result
	Summary   string
}

// StatusSummary is the minimal view returned by Status.
type StatusSummary struct {
	JobID     string
	Status    Status
	Target    string
	Task      preprocessing.Task
	BestModel string
	BestScore float64
	Metric    string
}

// Registry is a concurrency-safe, append-only job map.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	order  []string
	now    func() time.Time
	logger log.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		jobs:   make(map[string]*Job),
		now:    time.Now,
		logger: log.GetLoggerWithName("registry"),
	}
}

// Put stores a copy of job under a fresh identifier and returns it.
func (r *Registry) Put(job *Job) (string, error) {
	const op = "registry.Put"
	if job == nil || job.Result == nil {
		return "", errors.NewStateError(op, "job", "", errors.ErrNoTrainedModel)
	}
	stored := *job
	stored.ID = uuid.NewString()
	stored.Status = StatusCompleted
	if stored.Target == "" {
		stored.Target = job.Result.Target
	}
	if stored.Task == "" {
		stored.Task = job.Result.Task
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}

	r.mu.Lock()
	r.jobs[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()

	r.logger.Info("job registered", log.JobIDKey, stored.ID, log.TargetKey, stored.Target)
	return stored.ID, nil
}

// Get returns the job with id, or a not-found StateError.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("registry.Get", "job", id)
	}
	return job, nil
}

// Status summarises the job with id.
func (r *Registry) Status(id string) (StatusSummary, error) {
	job, err := r.Get(id)
	if err != nil {
		return StatusSummary{}, err
	}
	s := StatusSummary{JobID: job.ID, Status: job.Status, Target: job.Target, Task: job.Task}
	if best := job.Result.Best; best != nil {
		s.BestModel = best.ModelName
		s.BestScore = best.Score
		s.Metric = best.MetricName
	}
	return s, nil
}

// List returns every job, newest first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.jobs[r.order[i]])
	}
	return out
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
