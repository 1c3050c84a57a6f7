package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"filealchemist/internal/fileident"
	"filealchemist/internal/models"
)

// Memory keeps jobs in process memory. It is used when no database is
// configured and returns copies so callers never share a job with it.
type Memory struct {
	mu   sync.RWMutex
	jobs []*models.Job
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveJob(_ context.Context, job *models.Job) error {
	const op = "storage.Memory.SaveJob"
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fileident.Fingerprint(job.Identity())
	for _, j := range m.jobs {
		if j.ID == job.ID || fileident.Fingerprint(j.Identity()) == key {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
	}
	m.jobs = append(m.jobs, cloneJob(job))
	return nil
}

func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	const op = "storage.Memory.GetJob"
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.index(id); i >= 0 {
		return cloneJob(m.jobs[i]), nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
}

func (m *Memory) ListJobs(_ context.Context) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Job, len(m.jobs))
	for i, j := range m.jobs {
		out[i] = cloneJob(j)
	}
	return out, nil
}

func (m *Memory) UpdateJob(_ context.Context, job *models.Job) error {
	const op = "storage.Memory.UpdateJob"
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(job.ID)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	m.jobs[i] = cloneJob(job)
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, id uuid.UUID) error {
	const op = "storage.Memory.DeleteJob"
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
	return nil
}

func (m *Memory) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	m.jobs = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() {}

func (m *Memory) index(id uuid.UUID) int {
	for i, j := range m.jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Settings.Quality != nil {
		q := *j.Settings.Quality
		c.Settings.Quality = &q
	}
	if j.Settings.Resize != nil {
		r := *j.Settings.Resize
		c.Settings.Resize = &r
	}
	return &c
}
