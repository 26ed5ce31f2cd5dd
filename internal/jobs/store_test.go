package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for runner tests.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*Record)}
}

func (s *memStore) SaveJob(_ context.Context, job Job) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.records[job.ID()] = &Record{
		ID:        job.ID(),
		Type:      job.Type(),
		Payload:   job.Payload(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *memStore) put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &rec
}

func (s *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status Status, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrJobNotFound
	}
	rec.Status = status
	rec.ErrorMessage = msg
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) byStatus(status Status, olderThan time.Duration) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && time.Since(rec.UpdatedAt) < olderThan {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

func (s *memStore) GetPendingJobs(_ context.Context) ([]Record, error) {
	return s.byStatus(StatusPending, 0), nil
}

func (s *memStore) GetProcessingJobs(_ context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(StatusProcessing, olderThan), nil
}

func (s *memStore) status(id uuid.UUID) Status {
	rec, err := s.GetJob(context.Background(), id)
	if err != nil {
		return ""
	}
	return rec.Status
}
